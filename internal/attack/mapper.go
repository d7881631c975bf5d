// Package attack maps free text and report data onto the MITRE ATT&CK
// enterprise taxonomy using a baseline technique dataset shipped with the
// binary, and produces Navigator-compatible layers.
package attack

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	_ "embed"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

//go:embed enterprise_attack.json
var datasetRaw []byte

type datasetEntry struct {
	TechniqueID string `json:"techniqueId"`
	Name        string `json:"name"`
	Tactic      string `json:"tactic"`
	Description string `json:"description"`
}

var (
	dbOnce sync.Once
	db     []datasetEntry
)

func loadDB() []datasetEntry {
	dbOnce.Do(func() {
		if err := json.Unmarshal(datasetRaw, &db); err != nil {
			// The dataset is compiled in; a parse failure is a build defect.
			panic("attack: embedded dataset is invalid: " + err.Error())
		}
	})
	return db
}

var tcodeRe = regexp.MustCompile(`\bT\d{4}(?:\.\d{3})?\b`)

// LookupTechnique searches the baseline dataset by T-code or keyword.
// An exact or prefix T-code match wins; otherwise the query is matched
// case-insensitively against technique names and descriptions.
func LookupTechnique(query string) []model.AttackTechnique {
	queryUpper := strings.ToUpper(strings.TrimSpace(query))
	queryLower := strings.ToLower(strings.TrimSpace(query))
	results := make([]model.AttackTechnique, 0)

	for _, entry := range loadDB() {
		tid := strings.ToUpper(entry.TechniqueID)

		if queryUpper == tid {
			results = append(results, entryToTechnique(entry))
			continue
		}
		// Partial T-code match: "T1059" also matches "T1059.001".
		if tcodeRe.MatchString(queryUpper) && strings.HasPrefix(tid, queryUpper) {
			results = append(results, entryToTechnique(entry))
			continue
		}
		if strings.Contains(strings.ToLower(entry.Name), queryLower) ||
			strings.Contains(strings.ToLower(entry.Description), queryLower) {
			results = append(results, entryToTechnique(entry))
		}
	}

	return results
}

// MapTechniquesFromText extracts techniques from free text using the T-code
// regex plus keyword matching against technique names. Short names (< 6 chars)
// are skipped to avoid false positives.
func MapTechniquesFromText(text string) []model.AttackTechnique {
	found := make(map[string]model.AttackTechnique)
	order := make([]string, 0)

	for _, tcode := range tcodeRe.FindAllString(text, -1) {
		for _, entry := range loadDB() {
			if strings.EqualFold(entry.TechniqueID, tcode) {
				if _, ok := found[entry.TechniqueID]; !ok {
					found[entry.TechniqueID] = entryToTechnique(entry)
					order = append(order, entry.TechniqueID)
				}
			}
		}
	}

	textLower := strings.ToLower(text)
	for _, entry := range loadDB() {
		if _, ok := found[entry.TechniqueID]; ok {
			continue
		}
		nameLower := strings.ToLower(entry.Name)
		if len(nameLower) >= 6 && strings.Contains(textLower, nameLower) {
			found[entry.TechniqueID] = entryToTechnique(entry)
			order = append(order, entry.TechniqueID)
		}
	}

	out := make([]model.AttackTechnique, 0, len(order))
	for _, tid := range order {
		out = append(out, found[tid])
	}
	return out
}

const maxEvidencePerTechnique = 3

// EnrichMapping attaches evidence quotes from the research text to each
// technique: any sentence referencing the technique by ID or name, capped at
// three quotes per technique. Existing evidence is preserved.
func EnrichMapping(techniques []model.AttackTechnique, researchText string) []model.AttackTechnique {
	sentences := splitSentences(researchText)

	enriched := make([]model.AttackTechnique, 0, len(techniques))
	for _, tech := range techniques {
		evidence := append([]model.Evidence(nil), tech.Evidence...)
		nameLower := strings.ToLower(tech.Name)

		for _, sentence := range sentences {
			if len(evidence) >= maxEvidencePerTechnique {
				break
			}
			if len(sentence) < 20 {
				continue
			}
			if !strings.Contains(sentence, tech.TechniqueID) &&
				!(len(nameLower) >= 6 && strings.Contains(strings.ToLower(sentence), nameLower)) {
				continue
			}
			dup := false
			for _, e := range evidence {
				if e.Quote == sentence {
					dup = true
					break
				}
			}
			if !dup {
				evidence = append(evidence, model.Evidence{Quote: sentence, Source: "Research synthesis"})
			}
		}

		tech.Evidence = evidence
		enriched = append(enriched, tech)
	}

	return enriched
}

func entryToTechnique(entry datasetEntry) model.AttackTechnique {
	return model.AttackTechnique{
		TechniqueID: entry.TechniqueID,
		Name:        entry.Name,
		Tactic:      entry.Tactic,
		Description: entry.Description,
		Evidence:    []model.Evidence{},
	}
}

var sentenceRe = regexp.MustCompile(`(?:[.!?])\s+`)

func splitSentences(text string) []string {
	parts := sentenceRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
