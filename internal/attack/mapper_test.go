package attack

import (
	"strings"
	"testing"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func TestLookupByExactTCode(t *testing.T) {
	results := LookupTechnique("T1566.001")
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Name != "Spearphishing Attachment" {
		t.Errorf("name = %q", results[0].Name)
	}
}

func TestLookupByTCodePrefix(t *testing.T) {
	results := LookupTechnique("T1059")
	if len(results) < 3 {
		t.Fatalf("expected parent and subtechniques for T1059, got %d", len(results))
	}
	for _, r := range results {
		if !strings.HasPrefix(r.TechniqueID, "T1059") {
			t.Errorf("unexpected technique %s", r.TechniqueID)
		}
	}
}

func TestLookupByKeyword(t *testing.T) {
	results := LookupTechnique("phishing")
	if len(results) == 0 {
		t.Fatal("expected keyword matches for phishing")
	}
	for _, r := range results {
		nameDesc := strings.ToLower(r.Name + " " + r.Description)
		if !strings.Contains(nameDesc, "phishing") {
			t.Errorf("%s matched without containing the keyword", r.TechniqueID)
		}
	}
}

func TestLookupNoMatch(t *testing.T) {
	if results := LookupTechnique("zzzz-not-a-technique"); len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestMapTechniquesFromTextTCodes(t *testing.T) {
	text := "The actor used T1059.001 for execution and T1486 to encrypt hosts."
	techniques := MapTechniquesFromText(text)

	ids := make(map[string]bool)
	for _, tech := range techniques {
		ids[tech.TechniqueID] = true
	}
	if !ids["T1059.001"] || !ids["T1486"] {
		t.Fatalf("missing expected techniques, got %v", ids)
	}
}

func TestMapTechniquesFromTextKeyword(t *testing.T) {
	text := "Operators relied on process injection to hide in explorer.exe."
	techniques := MapTechniquesFromText(text)

	found := false
	for _, tech := range techniques {
		if tech.TechniqueID == "T1055" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected Process Injection from name keyword match")
	}
}

func TestMapTechniquesDeduplicates(t *testing.T) {
	text := "T1486 ransomware. Data Encrypted for Impact. T1486 again."
	techniques := MapTechniquesFromText(text)

	count := 0
	for _, tech := range techniques {
		if tech.TechniqueID == "T1486" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("T1486 appears %d times, want 1", count)
	}
}

func TestEnrichMappingAttachesQuotes(t *testing.T) {
	techniques := []model.AttackTechnique{{
		TechniqueID: "T1059.001",
		Name:        "PowerShell",
		Tactic:      "Execution",
		Evidence:    []model.Evidence{},
	}}
	text := "Initial access came via email. The loader spawned PowerShell with an encoded command to stage the payload. Cleanup followed shortly after."

	enriched := EnrichMapping(techniques, text)
	if len(enriched[0].Evidence) != 1 {
		t.Fatalf("expected 1 evidence quote, got %d", len(enriched[0].Evidence))
	}
	if !strings.Contains(strings.ToLower(enriched[0].Evidence[0].Quote), "powershell") {
		t.Errorf("quote %q does not mention the technique", enriched[0].Evidence[0].Quote)
	}
}

func TestEnrichMappingCapsAtThree(t *testing.T) {
	techniques := []model.AttackTechnique{{
		TechniqueID: "T1486",
		Name:        "Data Encrypted for Impact",
		Tactic:      "Impact",
	}}
	text := strings.Repeat("The group executed T1486 against the file servers overnight. ", 6)

	enriched := EnrichMapping(techniques, text)
	if got := len(enriched[0].Evidence); got > 3 {
		t.Fatalf("evidence = %d quotes, cap is 3", got)
	}
}

func TestGenerateNavigatorLayer(t *testing.T) {
	techniques := []model.AttackTechnique{
		{
			TechniqueID: "T1566.001",
			Name:        "Spearphishing Attachment",
			Tactic:      "Initial Access",
			Description: "desc",
			Evidence:    []model.Evidence{{Quote: "malicious attachment observed", Source: "[1]"}},
		},
		{TechniqueID: "T1999", Name: "Unknown", Tactic: "Made Up Tactic", Description: "fallback color"},
	}

	layer := GenerateNavigatorLayer(techniques, "FIN7 campaign")

	if layer.Domain != "enterprise-attack" {
		t.Errorf("domain = %q", layer.Domain)
	}
	if !strings.Contains(layer.Name, "FIN7 campaign") {
		t.Errorf("layer name = %q", layer.Name)
	}
	if len(layer.Techniques) != 2 {
		t.Fatalf("techniques = %d, want 2", len(layer.Techniques))
	}

	first := layer.Techniques[0]
	if first.Tactic != "initial-access" {
		t.Errorf("tactic normalized to %q", first.Tactic)
	}
	if first.Color != tacticColors["initial-access"] {
		t.Errorf("color = %q", first.Color)
	}
	if !strings.Contains(first.Comment, "malicious attachment observed") {
		t.Errorf("comment should carry the evidence quote, got %q", first.Comment)
	}

	second := layer.Techniques[1]
	if second.Color != defaultColor {
		t.Errorf("unknown tactic should use the default color, got %q", second.Color)
	}
	if second.Comment != "fallback color" {
		t.Errorf("comment should fall back to the description, got %q", second.Comment)
	}
}
