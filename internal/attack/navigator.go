package attack

import (
	"fmt"
	"strings"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// Tactic-to-color mapping for visual differentiation in the Navigator UI.
var tacticColors = map[string]string{
	"reconnaissance":       "#6baed6",
	"resource-development": "#74c476",
	"initial-access":       "#e6550d",
	"execution":            "#fd8d3c",
	"persistence":          "#fdae6b",
	"privilege-escalation": "#fdd0a2",
	"defense-evasion":      "#c6dbef",
	"credential-access":    "#e7969c",
	"discovery":            "#9ecae1",
	"lateral-movement":     "#a1d99b",
	"collection":           "#bcbddc",
	"command-and-control":  "#d9d9d9",
	"exfiltration":         "#ff9896",
	"impact":               "#e60d0d",
}

const defaultColor = "#e60d0d"

// LayerTechnique is one technique row in a Navigator layer.
type LayerTechnique struct {
	TechniqueID       string   `json:"techniqueID"`
	Tactic            string   `json:"tactic"`
	Color             string   `json:"color"`
	Comment           string   `json:"comment"`
	Enabled           bool     `json:"enabled"`
	Metadata          []string `json:"metadata"`
	Links             []string `json:"links"`
	ShowSubtechniques bool     `json:"showSubtechniques"`
	Score             int      `json:"score"`
}

// Layer is an ATT&CK Navigator layer document (schema v4.5), importable at
// https://mitre-attack.github.io/attack-navigator/
type Layer struct {
	Name         string            `json:"name"`
	Versions     LayerVersions     `json:"versions"`
	Domain       string            `json:"domain"`
	Description  string            `json:"description"`
	Filters      LayerFilters      `json:"filters"`
	Sorting      int               `json:"sorting"`
	Layout       LayerLayout       `json:"layout"`
	HideDisabled bool              `json:"hideDisabled"`
	Techniques   []LayerTechnique  `json:"techniques"`
	Gradient     LayerGradient     `json:"gradient"`
	LegendItems  []LayerLegendItem `json:"legendItems"`
	Metadata     []string          `json:"metadata"`
	Links        []string          `json:"links"`

	ShowTacticRowBackground       bool   `json:"showTacticRowBackground"`
	TacticRowBackground           string `json:"tacticRowBackground"`
	SelectTechniquesAcrossTactics bool   `json:"selectTechniquesAcrossTactics"`
	SelectSubtechniquesWithParent bool   `json:"selectSubtechniquesWithParent"`
	SelectVisibleTechniques       bool   `json:"selectVisibleTechniques"`
}

type LayerVersions struct {
	Attack    string `json:"attack"`
	Navigator string `json:"navigator"`
	Layer     string `json:"layer"`
}

type LayerFilters struct {
	Platforms []string `json:"platforms"`
}

type LayerLayout struct {
	Layout              string `json:"layout"`
	AggregateFunction   string `json:"aggregateFunction"`
	ShowID              bool   `json:"showID"`
	ShowName            bool   `json:"showName"`
	ShowAggregateScores bool   `json:"showAggregateScores"`
	CountUnscored       bool   `json:"countUnscored"`
}

type LayerGradient struct {
	Colors   []string `json:"colors"`
	MinValue int      `json:"minValue"`
	MaxValue int      `json:"maxValue"`
}

type LayerLegendItem struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// normalizeTactic converts a tactic name to the kebab-case the Navigator uses.
func normalizeTactic(tactic string) string {
	t := strings.ToLower(strings.TrimSpace(tactic))
	t = strings.ReplaceAll(t, " ", "-")
	t = strings.ReplaceAll(t, "&", "and")
	return t
}

// GenerateNavigatorLayer builds a Navigator layer from the given techniques.
// Evidence quotes become the technique comment; the description is the fallback.
func GenerateNavigatorLayer(techniques []model.AttackTechnique, reportTopic string) Layer {
	layerTechniques := make([]LayerTechnique, 0, len(techniques))
	for _, tech := range techniques {
		tacticKey := normalizeTactic(tech.Tactic)

		commentParts := make([]string, 0, len(tech.Evidence))
		for _, ev := range tech.Evidence {
			commentParts = append(commentParts, fmt.Sprintf("%q — %s", ev.Quote, ev.Source))
		}
		comment := tech.Description
		if len(commentParts) > 0 {
			comment = strings.Join(commentParts, "\n")
		}

		color, ok := tacticColors[tacticKey]
		if !ok {
			color = defaultColor
		}

		layerTechniques = append(layerTechniques, LayerTechnique{
			TechniqueID:       tech.TechniqueID,
			Tactic:            tacticKey,
			Color:             color,
			Comment:           comment,
			Enabled:           true,
			Metadata:          []string{},
			Links:             []string{},
			ShowSubtechniques: false,
			Score:             100,
		})
	}

	return Layer{
		Name:        "CyberBRIEF — " + reportTopic,
		Versions:    LayerVersions{Attack: "15", Navigator: "5.0.1", Layer: "4.5"},
		Domain:      "enterprise-attack",
		Description: "Auto-generated ATT&CK layer for: " + reportTopic,
		Filters: LayerFilters{Platforms: []string{
			"Linux", "macOS", "Windows", "Network", "PRE", "Containers",
			"Office 365", "SaaS", "Google Workspace", "IaaS", "Azure AD",
		}},
		Sorting: 0,
		Layout: LayerLayout{
			Layout:            "side",
			AggregateFunction: "average",
			ShowID:            true,
			ShowName:          true,
		},
		Techniques:  layerTechniques,
		Gradient:    LayerGradient{Colors: []string{"#ffffff", "#e60d0d"}, MinValue: 0, MaxValue: 100},
		LegendItems: []LayerLegendItem{{Label: "Observed in report", Color: "#e60d0d"}},
		Metadata:    []string{},
		Links:       []string{},

		ShowTacticRowBackground:       true,
		TacticRowBackground:           "#212121",
		SelectTechniquesAcrossTactics: true,
	}
}
