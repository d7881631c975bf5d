package research

import (
	"encoding/json"
	"strings"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// synthesisDoc is the JSON structure both synthesis models are prompted to
// return. Field names are the models' snake_case, not our wire format.
type synthesisDoc struct {
	BLUF          string `json:"bluf"`
	SearchResults []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"search_results"`
	SynthesizedContent string `json:"synthesized_content"`
	ThreatActor        *struct {
		Name        string   `json:"name"`
		Aliases     []string `json:"aliases"`
		Attribution string   `json:"attribution"`
		FirstSeen   string   `json:"first_seen"`
		LastActive  string   `json:"last_active"`
		Tooling     []string `json:"tooling"`
		Notes       string   `json:"notes"`
	} `json:"threat_actor"`
	Sections []struct {
		ID        string   `json:"id"`
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		Citations []string `json:"citations"`
	} `json:"sections"`
	IOCs []struct {
		Type    string `json:"type"`
		Value   string `json:"value"`
		Context string `json:"context"`
	} `json:"iocs"`
	Techniques []rawTechnique `json:"techniques"`
	// Gemini is prompted with a different key for the same list.
	AttackTechniques []rawTechnique `json:"attack_techniques"`
}

type rawTechnique struct {
	ID          string `json:"id"`
	TechniqueID string `json:"technique_id"`
	Name        string `json:"name"`
	Tactic      string `json:"tactic"`
	Description string `json:"description"`
	Evidence    []struct {
		Quote  string `json:"quote"`
		Source string `json:"source"`
	} `json:"evidence"`
}

func (t rawTechnique) id() string {
	if t.TechniqueID != "" {
		return t.TechniqueID
	}
	return t.ID
}

// decodeSynthesis parses model output into a synthesisDoc, working through the
// usual LLM formatting failures:
//
//  1. direct JSON parse
//  2. strip markdown code fences and retry
//  3. strip trailing commentary after the last '}' and retry
//  4. extract the outermost { ... } block and retry
//
// Returns false when nothing parseable remains; callers then fall back to
// treating the raw text as unstructured narrative.
func decodeSynthesis(raw string) (synthesisDoc, bool) {
	var doc synthesisDoc

	text := strings.TrimSpace(raw)
	if json.Unmarshal([]byte(text), &doc) == nil && looksParsed(doc) {
		return doc, true
	}

	cleaned := text
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = cleaned[3:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
		doc = synthesisDoc{}
		if json.Unmarshal([]byte(cleaned), &doc) == nil && looksParsed(doc) {
			return doc, true
		}
	}

	lastBrace := strings.LastIndex(cleaned, "}")
	if lastBrace != -1 {
		trimmed := strings.TrimSpace(cleaned[:lastBrace+1])
		doc = synthesisDoc{}
		if json.Unmarshal([]byte(trimmed), &doc) == nil && looksParsed(doc) {
			return doc, true
		}
	}

	firstBrace := strings.Index(cleaned, "{")
	if firstBrace != -1 && lastBrace > firstBrace {
		extracted := cleaned[firstBrace : lastBrace+1]
		doc = synthesisDoc{}
		if json.Unmarshal([]byte(extracted), &doc) == nil && looksParsed(doc) {
			return doc, true
		}
	}

	util.PrintWarning("synthesis response could not be parsed as JSON, using raw content")
	return synthesisDoc{}, false
}

// looksParsed guards against technically-valid JSON that carries none of the
// prompted fields (e.g. a bare string or empty object).
func looksParsed(doc synthesisDoc) bool {
	return doc.BLUF != "" || doc.SynthesizedContent != "" ||
		len(doc.Sections) > 0 || len(doc.IOCs) > 0 ||
		len(doc.Techniques) > 0 || len(doc.AttackTechniques) > 0
}

// parseIOCType maps the looser type vocabulary models emit onto IOCType.
func parseIOCType(s string) (model.IOCType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ip", "ipv4":
		return model.IOCIPv4, true
	case "ipv6":
		return model.IOCIPv6, true
	case "domain":
		return model.IOCDomain, true
	case "url":
		return model.IOCURL, true
	case "md5", "hash_md5":
		return model.IOCMD5, true
	case "sha1", "hash_sha1":
		return model.IOCSHA1, true
	case "sha256", "hash_sha256":
		return model.IOCSHA256, true
	case "cve":
		return model.IOCCVE, true
	}
	return "", false
}

// docIOCs converts parsed indicator entries, skipping unknown types.
func docIOCs(doc synthesisDoc) []model.IOC {
	iocs := make([]model.IOC, 0, len(doc.IOCs))
	for _, raw := range doc.IOCs {
		typ, ok := parseIOCType(raw.Type)
		if !ok {
			util.PrintWarning("skipping IOC with unknown type: " + raw.Type)
			continue
		}
		if raw.Value == "" {
			continue
		}
		iocs = append(iocs, model.IOC{Type: typ, Value: raw.Value, Context: raw.Context, Sources: []string{}})
	}
	return iocs
}

// docTechniques converts parsed technique entries from either prompt key.
func docTechniques(doc synthesisDoc) []model.AttackTechnique {
	raws := doc.Techniques
	if len(doc.AttackTechniques) > 0 {
		raws = doc.AttackTechniques
	}

	techniques := make([]model.AttackTechnique, 0, len(raws))
	for _, raw := range raws {
		if raw.id() == "" {
			continue
		}
		evidence := make([]model.Evidence, 0, len(raw.Evidence))
		for _, ev := range raw.Evidence {
			evidence = append(evidence, model.Evidence{Quote: ev.Quote, Source: ev.Source})
		}
		techniques = append(techniques, model.AttackTechnique{
			TechniqueID: raw.id(),
			Name:        raw.Name,
			Tactic:      raw.Tactic,
			Description: raw.Description,
			Evidence:    evidence,
		})
	}
	return techniques
}
