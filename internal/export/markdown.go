// Package export renders finished reports for distribution, as Markdown or
// as a self-contained HTML page.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

var tlpBanners = map[model.TLPLevel]string{
	model.TLPClear:       "🟢 **TLP:CLEAR** — Disclosure is not limited.",
	model.TLPGreen:       "🟢 **TLP:GREEN** — Limited disclosure, community only.",
	model.TLPAmber:       "🟡 **TLP:AMBER** — Limited disclosure, restricted to participants' organizations.",
	model.TLPAmberStrict: "🟡 **TLP:AMBER+STRICT** — Limited disclosure, restricted to participants only.",
	model.TLPRed:         "🔴 **TLP:RED** — Not for disclosure. Restricted to participants only.",
}

var (
	citationRe     = regexp.MustCompile(`\[(\d+)\]`)
	sentenceEndsRe = regexp.MustCompile(`(?:[.!?])\s+`)
)

// injectSuperscripts distributes <sup>[N]</sup> markers across the section's
// sentences based on its citation references.
func injectSuperscripts(content string, citations []string) string {
	if len(citations) == 0 {
		return content
	}

	var refs []string
	for _, c := range citations {
		if m := citationRe.FindStringSubmatch(c); m != nil {
			refs = append(refs, fmt.Sprintf("<sup>[%s]</sup>", m[1]))
		}
	}
	if len(refs) == 0 {
		return content
	}

	sentences := splitKeepingDelims(content)
	if len(sentences) == 0 {
		return content
	}

	stride := len(sentences) / len(refs)
	if stride < 1 {
		stride = 1
	}

	var out []string
	refIdx := 0
	for i, sentence := range sentences {
		out = append(out, sentence)
		if refIdx < len(refs) && (i%stride == 0 || i == len(sentences)-1) {
			out = append(out, refs[refIdx])
			refIdx++
		}
	}
	return strings.Join(out, " ")
}

// splitKeepingDelims splits on sentence boundaries, keeping terminal
// punctuation attached to each sentence.
func splitKeepingDelims(content string) []string {
	locs := sentenceEndsRe.FindAllStringIndex(content, -1)
	var out []string
	prev := 0
	for _, loc := range locs {
		// keep the punctuation, drop the trailing whitespace
		end := loc[0] + 1
		if s := strings.TrimSpace(content[prev:end]); s != "" {
			out = append(out, s)
		}
		prev = loc[1]
	}
	if s := strings.TrimSpace(content[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func renderIOCTable(iocs []model.IOC) string {
	if len(iocs) == 0 {
		return ""
	}
	lines := []string{
		"| Type | Indicator | Context |",
		"|------|-----------|---------|",
	}
	for _, entry := range iocs {
		ctx := entry.Context
		if ctx == "" {
			ctx = "—"
		}
		lines = append(lines, fmt.Sprintf("| %s | `%s` | %s |",
			strings.ToUpper(string(entry.Type)),
			escapeMarkdownCell(entry.Value),
			escapeMarkdownCell(ctx)))
	}
	return strings.Join(lines, "\n")
}

// Markdown renders the report as a complete Markdown document: TLP banner,
// metadata header, table of contents, BLUF, sections with footnote
// superscripts, IOC and ATT&CK tables, confidence assessments, endnotes,
// and a Chicago-style bibliography.
func Markdown(rpt *model.Report) string {
	var parts []string
	add := func(lines ...string) { parts = append(parts, lines...) }

	banner, ok := tlpBanners[rpt.TLP]
	if !ok {
		banner = fmt.Sprintf("**%s**", rpt.TLP)
	}
	add("> "+banner, "")

	add("# "+rpt.Topic, "")
	add(fmt.Sprintf("**Generated:** %s  ", rpt.CreatedAt))
	add(fmt.Sprintf("**Tier:** %s  ", rpt.Tier))
	add(fmt.Sprintf("**Report ID:** `%s`", rpt.ID))
	add("", "---", "")

	add("## Table of Contents", "")
	add("- [BLUF — Bottom Line Up Front](#bluf)")
	add("- [Threat Actor Profile](#threat-actor-profile)")
	for _, section := range rpt.Sections {
		add(fmt.Sprintf("- [%s](#%s)", section.Title, section.ID))
	}
	if len(rpt.IOCs) > 0 {
		add("- [Indicators of Compromise](#indicators-of-compromise)")
	}
	if len(rpt.AttackMapping) > 0 {
		add("- [MITRE ATT&CK Mapping](#mitre-attck-mapping)")
	}
	if len(rpt.ConfidenceAssessments) > 0 {
		add("- [Confidence Assessments](#confidence-assessments)")
	}
	add("- [Endnotes](#endnotes)")
	add("- [Bibliography](#bibliography)")
	add("", "---", "")

	add(`<a id="bluf"></a>`, "")
	add("## BLUF — Bottom Line Up Front", "")
	add("> "+rpt.BLUF, "")

	add(`<a id="threat-actor-profile"></a>`, "")
	add("## Threat Actor Profile", "")
	ta := rpt.ThreatActor
	add("- **Name:** " + ta.Name)
	if len(ta.Aliases) > 0 {
		add("- **Aliases:** " + strings.Join(ta.Aliases, ", "))
	}
	add("- **Attribution:** " + ta.Attribution)
	if ta.FirstSeen != "" {
		add("- **First Seen:** " + ta.FirstSeen)
	}
	if ta.LastActive != "" {
		add("- **Last Active:** " + ta.LastActive)
	}
	if len(ta.Tooling) > 0 {
		add("- **Tooling:** " + strings.Join(ta.Tooling, ", "))
	}
	if ta.Notes != "" {
		add("- **Notes:** " + ta.Notes)
	}
	add("")

	hasIOCSection := false
	for _, section := range rpt.Sections {
		if section.ID == "iocs" {
			hasIOCSection = true
		}
		add(fmt.Sprintf(`<a id="%s"></a>`, section.ID), "")
		add("## "+section.Title, "")
		add(injectSuperscripts(section.Content, section.Citations), "")
	}

	if len(rpt.IOCs) > 0 && !hasIOCSection {
		add(`<a id="indicators-of-compromise"></a>`, "")
		add("## Indicators of Compromise", "")
		add(renderIOCTable(rpt.IOCs), "")
	}

	if len(rpt.AttackMapping) > 0 {
		add(`<a id="mitre-attck-mapping"></a>`, "")
		add("## MITRE ATT&CK Mapping", "")
		add("| Technique ID | Name | Tactic | Description |")
		add("|--------------|------|--------|-------------|")
		for _, tech := range rpt.AttackMapping {
			add(fmt.Sprintf("| %s | %s | %s | %s |",
				escapeMarkdownCell(tech.TechniqueID),
				escapeMarkdownCell(tech.Name),
				escapeMarkdownCell(tech.Tactic),
				escapeMarkdownCell(tech.Description)))
		}
		add("")
	}

	if len(rpt.ConfidenceAssessments) > 0 {
		add(`<a id="confidence-assessments"></a>`, "")
		add("## Confidence Assessments", "")
		for _, assessment := range rpt.ConfidenceAssessments {
			add(fmt.Sprintf("- **%s** — %s", assessment.Confidence, assessment.Finding))
			add("  - " + assessment.Rationale)
		}
		add("")
	}

	add(`<a id="endnotes"></a>`, "")
	add("## Endnotes", "")
	if len(rpt.Footnotes) > 0 {
		for _, note := range rpt.Footnotes {
			add(note, "")
		}
	} else {
		add("No sources to cite.", "")
	}

	add(`<a id="bibliography"></a>`, "")
	add("## Bibliography", "")
	if len(rpt.Bibliography) > 0 {
		for _, entry := range rpt.Bibliography {
			add(entry, "")
		}
	} else {
		add("No sources.", "")
	}

	add("---")
	add(fmt.Sprintf("*Report generated by CyberBRIEF • %s*", rpt.CreatedAt))
	add("")

	return strings.Join(parts, "\n")
}
