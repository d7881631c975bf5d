package export

import (
	"strings"
	"testing"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func sampleReport() *model.Report {
	return &model.Report{
		ID:        "abcdef0123456789",
		Topic:     "APT29 Cloud Intrusions",
		CreatedAt: "2026-08-20T09:00:00Z",
		Tier:      model.TierStandard,
		TLP:       model.TLPAmber,
		BLUF:      "We assess that threats related to APT29 Cloud Intrusions are likely. Confidence: Moderate.",
		ThreatActor: model.ThreatActorProfile{
			Name:        "APT29",
			Aliases:     []string{"Cozy Bear", "Midnight Blizzard"},
			Attribution: "Russian SVR",
			Tooling:     []string{"WellMess"},
		},
		Sections: []model.ReportSection{
			{ID: "executive-summary", Title: "Executive Summary", Content: "The campaign targeted cloud tenants. Password spraying was observed. Defenders responded quickly.", Citations: []string{"[1]", "[2]"}},
			{ID: "iocs", Title: "Indicators of Compromise (IOCs)", Content: "| Type | Value | Context |", Citations: []string{}},
		},
		IOCs: []model.IOC{
			{Type: model.IOCIPv4, Value: "203.0.113.7", Context: "C2 | primary", Sources: []string{}},
		},
		AttackMapping: []model.AttackTechnique{
			{TechniqueID: "T1110.003", Name: "Password Spraying", Tactic: "Credential Access", Description: "Low-and-slow spraying", Evidence: []model.Evidence{{Quote: "spraying was observed", Source: "Vendor report"}}},
		},
		Sources: []model.ReportSource{
			{Title: "Vendor report", URL: "https://vendor.example/report", AccessedAt: "2026-08-01T10:00:00Z"},
		},
		Footnotes:    []string{`1. "Vendor report," Vendor, accessed August 1, 2026, https://vendor.example/report.`},
		Bibliography: []string{`"Vendor report." Vendor. Accessed August 1, 2026. https://vendor.example/report.`},
		ConfidenceAssessments: []model.ConfidenceAssessment{
			{Finding: "Overall assessment", Confidence: model.ConfidenceModerate, Rationale: "Moderate — partial corroboration."},
		},
	}
}

func TestMarkdownStructure(t *testing.T) {
	md := Markdown(sampleReport())

	for _, want := range []string{
		"> 🟡 **TLP:AMBER**",
		"# APT29 Cloud Intrusions",
		"**Report ID:** `abcdef0123456789`",
		"## Table of Contents",
		"## BLUF — Bottom Line Up Front",
		"- **Aliases:** Cozy Bear, Midnight Blizzard",
		"## Executive Summary",
		"## MITRE ATT&CK Mapping",
		"| T1110.003 | Password Spraying | Credential Access | Low-and-slow spraying |",
		"## Confidence Assessments",
		"- **Moderate** — Overall assessment",
		"## Endnotes",
		"## Bibliography",
		"*Report generated by CyberBRIEF • 2026-08-20T09:00:00Z*",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownFootnoteSuperscripts(t *testing.T) {
	md := Markdown(sampleReport())
	if !strings.Contains(md, "<sup>[1]</sup>") {
		t.Error("expected superscript [1] injected into section content")
	}
}

func TestMarkdownNoDuplicateIOCSection(t *testing.T) {
	md := Markdown(sampleReport())
	// The report already carries an "iocs" section; the standalone table
	// must not be emitted a second time.
	if strings.Contains(md, `<a id="indicators-of-compromise"></a>`) {
		t.Error("standalone IOC section duplicated")
	}
}

func TestMarkdownStandaloneIOCTable(t *testing.T) {
	rpt := sampleReport()
	rpt.Sections = rpt.Sections[:1]
	md := Markdown(rpt)
	if !strings.Contains(md, `<a id="indicators-of-compromise"></a>`) {
		t.Error("standalone IOC section missing")
	}
	if !strings.Contains(md, `| IPV4 | `+"`203.0.113.7`"+` | C2 \| primary |`) {
		t.Error("IOC row missing or pipe not escaped")
	}
}

func TestMarkdownEmptySources(t *testing.T) {
	rpt := sampleReport()
	rpt.Footnotes = nil
	rpt.Bibliography = nil
	md := Markdown(rpt)
	if !strings.Contains(md, "No sources to cite.") || !strings.Contains(md, "No sources.") {
		t.Error("empty source placeholders missing")
	}
}

func TestInjectSuperscriptsNoCitations(t *testing.T) {
	content := "One sentence. Another sentence."
	if got := injectSuperscripts(content, nil); got != content {
		t.Errorf("content changed without citations: %q", got)
	}
	if got := injectSuperscripts(content, []string{"not-a-ref"}); got != content {
		t.Errorf("content changed with malformed citations: %q", got)
	}
}

func TestRenderIOCTableEmpty(t *testing.T) {
	if got := renderIOCTable(nil); got != "" {
		t.Errorf("got %q", got)
	}
}
