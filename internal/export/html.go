package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

type tlpStyle struct {
	label  string
	text   string
	color  string
	bg     string
	border string
}

var tlpStyles = map[model.TLPLevel]tlpStyle{
	model.TLPClear: {
		label: "TLP:CLEAR", text: "Disclosure is not limited.",
		color: "#22c55e", bg: "rgba(34, 197, 94, 0.1)", border: "rgba(34, 197, 94, 0.3)",
	},
	model.TLPGreen: {
		label: "TLP:GREEN", text: "Limited disclosure, community only.",
		color: "#22c55e", bg: "rgba(34, 197, 94, 0.1)", border: "rgba(34, 197, 94, 0.3)",
	},
	model.TLPAmber: {
		label: "TLP:AMBER", text: "Limited disclosure, restricted to participants' organizations.",
		color: "#f59e0b", bg: "rgba(245, 158, 11, 0.1)", border: "rgba(245, 158, 11, 0.3)",
	},
	model.TLPAmberStrict: {
		label: "TLP:AMBER+STRICT", text: "Limited disclosure, restricted to participants only.",
		color: "#f59e0b", bg: "rgba(245, 158, 11, 0.1)", border: "rgba(245, 158, 11, 0.3)",
	},
	model.TLPRed: {
		label: "TLP:RED", text: "Not for disclosure. Restricted to participants only.",
		color: "#ef4444", bg: "rgba(239, 68, 68, 0.1)", border: "rgba(239, 68, 68, 0.3)",
	},
}

func esc(s string) string {
	return html.EscapeString(s)
}

// renderFootnoteRefs escapes content and turns [N] citation markers into
// clickable superscript links targeting the endnote anchors.
func renderFootnoteRefs(content string) string {
	escaped := esc(content)
	return citationRe.ReplaceAllStringFunc(escaped, func(m string) string {
		num := citationRe.FindStringSubmatch(m)[1]
		return fmt.Sprintf(`<a class="footnote-ref" href="#endnote-%s" title="See endnote %s">[%s]</a>`, num, num, num)
	})
}

// HTML renders the report as a self-contained dark-themed page with inline
// CSS and print rules. No external assets are referenced.
func HTML(rpt *model.Report) string {
	tlp, ok := tlpStyles[rpt.TLP]
	if !ok {
		tlp = tlpStyles[model.TLPGreen]
	}

	var b strings.Builder
	w := func(lines ...string) {
		for _, l := range lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	w(fmt.Sprintf(htmlHead, esc(rpt.Topic), tlp.color, tlp.bg, tlp.border))

	bannerHTML := fmt.Sprintf(`<div class="tlp-banner">%s — %s</div>`, esc(tlp.label), esc(tlp.text))
	w(bannerHTML)

	w(`<div class="report-header">`)
	w(fmt.Sprintf("<h1>%s</h1>", esc(rpt.Topic)))
	w(fmt.Sprintf(`<p class="meta">Generated %s · %s Tier · <code>%s</code></p>`,
		esc(rpt.CreatedAt), esc(string(rpt.Tier)), esc(rpt.ID)))
	w(`<div class="bluf">`)
	w(`<div class="bluf-label">BLUF — Bottom Line Up Front</div>`)
	w(fmt.Sprintf("<p>%s</p>", esc(rpt.BLUF)))
	w(`</div>`, `</div>`)

	writeThreatActor(w, rpt.ThreatActor)

	for _, section := range rpt.Sections {
		w(fmt.Sprintf(`<div class="section" id="%s">`, esc(section.ID)))
		w(fmt.Sprintf("<h2>%s</h2>", esc(section.Title)))
		w(fmt.Sprintf(`<div class="section-content">%s</div>`, renderFootnoteRefs(section.Content)))
		w(`</div>`)
	}

	writeIOCTable(w, rpt.IOCs)
	writeAttackTable(w, rpt.AttackMapping)
	writeAssessments(w, rpt.ConfidenceAssessments)
	writeEndnotes(w, rpt.Footnotes)
	writeBibliography(w, rpt.Bibliography)

	w(bannerHTML)
	w(fmt.Sprintf(`<div class="footer">Report generated by CyberBRIEF · %s</div>`, esc(rpt.CreatedAt)))
	w(`</body>`, `</html>`)

	return b.String()
}

func writeThreatActor(w func(...string), ta model.ThreatActorProfile) {
	if ta.Name == "" {
		return
	}
	w(`<div class="section">`)
	w(`<h2>Threat Actor Profile</h2>`)
	w(`<div class="ta-grid">`)
	w(fmt.Sprintf(`<span class="ta-label">Name</span><span class="ta-value">%s</span>`, esc(ta.Name)))
	w(fmt.Sprintf(`<span class="ta-label">Attribution</span><span class="ta-value">%s</span>`, esc(ta.Attribution)))
	if len(ta.Aliases) > 0 {
		w(fmt.Sprintf(`<span class="ta-label">Aliases</span><span class="ta-value">%s</span>`, esc(strings.Join(ta.Aliases, ", "))))
	}
	if ta.FirstSeen != "" {
		w(fmt.Sprintf(`<span class="ta-label">First Seen</span><span class="ta-value">%s</span>`, esc(ta.FirstSeen)))
	}
	if ta.LastActive != "" {
		w(fmt.Sprintf(`<span class="ta-label">Last Active</span><span class="ta-value">%s</span>`, esc(ta.LastActive)))
	}
	w(`</div>`)
	if len(ta.Tooling) > 0 {
		w(`<div style="margin-top: 0.75rem;">`)
		w(`<span class="ta-label">Tooling: </span>`)
		for _, tool := range ta.Tooling {
			w(fmt.Sprintf(`<span class="tool-tag">%s</span>`, esc(tool)))
		}
		w(`</div>`)
	}
	w(`</div>`)
}

func writeIOCTable(w func(...string), iocs []model.IOC) {
	if len(iocs) == 0 {
		return
	}
	w(`<div class="section">`)
	w(`<h2>Indicators of Compromise</h2>`)
	w(`<table>`)
	w(`<thead><tr><th>Type</th><th>Indicator</th><th>Context</th></tr></thead>`)
	w(`<tbody>`)
	for _, entry := range iocs {
		ctx := entry.Context
		if ctx == "" {
			ctx = "—"
		}
		w(fmt.Sprintf(`<tr><td><span class="ioc-type">%s</span></td>`, esc(strings.ToUpper(string(entry.Type)))))
		w(fmt.Sprintf(`<td><span class="ioc-value">%s</span></td>`, esc(entry.Value)))
		w(fmt.Sprintf(`<td>%s</td></tr>`, esc(ctx)))
	}
	w(`</tbody></table>`)
	w(`</div>`)
}

func writeAttackTable(w func(...string), techniques []model.AttackTechnique) {
	if len(techniques) == 0 {
		return
	}
	w(`<div class="section">`)
	w(`<h2>MITRE ATT&amp;CK Mapping</h2>`)
	w(`<table>`)
	w(`<thead><tr><th>Technique ID</th><th>Name</th><th>Tactic</th><th>Evidence</th></tr></thead>`)
	w(`<tbody>`)
	for _, tech := range techniques {
		url := "https://attack.mitre.org/techniques/" + strings.ReplaceAll(tech.TechniqueID, ".", "/")

		var evidence string
		if len(tech.Evidence) > 0 {
			var blocks []string
			for _, ev := range tech.Evidence {
				blocks = append(blocks, fmt.Sprintf(
					`<div class="evidence-block"><span class="evidence-quote">&ldquo;%s&rdquo;</span><br><span class="evidence-source">— %s</span></div>`,
					esc(ev.Quote), esc(ev.Source)))
			}
			evidence = strings.Join(blocks, "")
		} else {
			evidence = fmt.Sprintf(`<span style="color: var(--text-muted); font-size: 0.8rem;">%s</span>`, esc(tech.Description))
		}

		w(`<tr>`)
		w(fmt.Sprintf(`<td><a class="attack-id" href="%s" target="_blank">%s</a></td>`, esc(url), esc(tech.TechniqueID)))
		w(fmt.Sprintf(`<td>%s</td>`, esc(tech.Name)))
		w(fmt.Sprintf(`<td><span class="tactic-badge">%s</span></td>`, esc(tech.Tactic)))
		w(fmt.Sprintf(`<td>%s</td>`, evidence))
		w(`</tr>`)
	}
	w(`</tbody></table>`)
	w(`</div>`)
}

func writeAssessments(w func(...string), assessments []model.ConfidenceAssessment) {
	if len(assessments) == 0 {
		return
	}
	w(`<div class="section">`)
	w(`<h2>Confidence Assessments</h2>`)
	for _, a := range assessments {
		confClass := "conf-" + strings.ToLower(string(a.Confidence))
		w(`<div class="confidence-row">`)
		w(fmt.Sprintf(`<span class="conf-badge %s">%s</span>`, confClass, esc(string(a.Confidence))))
		w(fmt.Sprintf(`<div><div style="color: var(--text-primary); font-size: 0.9rem;">%s</div>`, esc(a.Finding)))
		w(fmt.Sprintf(`<div style="color: var(--text-muted); font-size: 0.8rem; margin-top: 0.25rem;">%s</div></div>`, esc(a.Rationale)))
		w(`</div>`)
	}
	w(`</div>`)
}

func writeEndnotes(w func(...string), footnotes []string) {
	w(`<div class="section">`)
	w(`<h2>Endnotes</h2>`)
	if len(footnotes) == 0 {
		w(`<p style="color: var(--text-muted); font-size: 0.85rem;">No sources to cite.</p>`)
	} else {
		for i, note := range footnotes {
			w(fmt.Sprintf(`<div class="endnote" id="endnote-%d">%s</div>`, i+1, esc(note)))
		}
	}
	w(`</div>`)
}

func writeBibliography(w func(...string), bibliography []string) {
	w(`<div class="section">`)
	w(`<h2>Bibliography</h2>`)
	if len(bibliography) == 0 {
		w(`<p style="color: var(--text-muted); font-size: 0.85rem;">No sources.</p>`)
	} else {
		for _, entry := range bibliography {
			w(fmt.Sprintf(`<div class="bib-entry">%s</div>`, esc(entry)))
		}
	}
	w(`</div>`)
}

// htmlHead carries the document shell and inline stylesheet. Verbs:
// escaped topic, then the TLP color, background, and border values.
const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s — CyberBRIEF</title>
<style>
  :root {
    --bg-primary: #0f1117;
    --bg-secondary: #1a1d27;
    --bg-tertiary: #252830;
    --text-primary: #e5e7eb;
    --text-secondary: #9ca3af;
    --text-muted: #6b7280;
    --accent: #06b6d4;
    --accent-dim: rgba(6, 182, 212, 0.15);
    --border: #374151;
    --tlp-color: %s;
    --tlp-bg: %s;
    --tlp-border: %s;
  }

  * { margin: 0; padding: 0; box-sizing: border-box; }

  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
    background: var(--bg-primary);
    color: var(--text-primary);
    line-height: 1.7;
    padding: 2rem;
    max-width: 900px;
    margin: 0 auto;
  }

  .tlp-banner {
    background: var(--tlp-bg);
    border: 1px solid var(--tlp-border);
    color: var(--tlp-color);
    padding: 0.75rem 1rem;
    border-radius: 8px;
    text-align: center;
    font-weight: 600;
    font-size: 0.9rem;
    margin-bottom: 2rem;
  }

  .report-header {
    background: var(--bg-secondary);
    border: 1px solid var(--border);
    border-radius: 12px;
    padding: 2rem;
    margin-bottom: 1.5rem;
  }

  h1 {
    font-size: 1.75rem;
    font-weight: 700;
    color: var(--text-primary);
    margin-bottom: 0.5rem;
  }

  .meta {
    font-size: 0.85rem;
    color: var(--text-muted);
  }

  .meta code {
    font-size: 0.75rem;
    color: var(--text-muted);
    background: var(--bg-tertiary);
    padding: 0.15rem 0.4rem;
    border-radius: 4px;
  }

  .bluf {
    background: var(--accent-dim);
    border: 1px solid rgba(6, 182, 212, 0.25);
    border-radius: 8px;
    padding: 1rem 1.25rem;
    margin-top: 1.5rem;
  }

  .bluf-label {
    font-size: 0.7rem;
    font-weight: 700;
    color: var(--accent);
    text-transform: uppercase;
    letter-spacing: 0.08em;
    margin-bottom: 0.4rem;
  }

  .bluf p {
    color: var(--text-primary);
    line-height: 1.6;
  }

  .section {
    background: var(--bg-secondary);
    border: 1px solid var(--border);
    border-radius: 12px;
    padding: 1.5rem 2rem;
    margin-bottom: 1rem;
  }

  h2 {
    font-size: 1.2rem;
    font-weight: 600;
    color: var(--text-primary);
    margin-bottom: 1rem;
    padding-bottom: 0.5rem;
    border-bottom: 1px solid var(--border);
  }

  .section-content {
    color: var(--text-secondary);
    line-height: 1.8;
    white-space: pre-wrap;
  }

  .footnote-ref {
    color: var(--accent);
    font-size: 0.7rem;
    vertical-align: super;
    text-decoration: none;
    cursor: pointer;
  }

  .footnote-ref:hover { text-decoration: underline; }

  table {
    width: 100%%;
    border-collapse: collapse;
    font-size: 0.85rem;
    margin-top: 0.5rem;
  }

  th {
    text-align: left;
    padding: 0.6rem 0.8rem;
    color: var(--text-muted);
    border-bottom: 1px solid var(--border);
    font-weight: 600;
    font-size: 0.8rem;
  }

  td {
    padding: 0.6rem 0.8rem;
    border-bottom: 1px solid rgba(55, 65, 81, 0.3);
    color: var(--text-secondary);
    vertical-align: top;
  }

  .ioc-type {
    display: inline-block;
    padding: 0.15rem 0.5rem;
    border-radius: 4px;
    font-size: 0.75rem;
    font-family: monospace;
    text-transform: uppercase;
    background: var(--bg-tertiary);
    color: var(--text-secondary);
  }

  .ioc-value {
    font-family: monospace;
    color: var(--accent);
    font-size: 0.8rem;
    word-break: break-all;
  }

  .attack-id {
    font-family: monospace;
    font-size: 0.85rem;
    color: var(--accent);
    text-decoration: none;
  }

  .attack-id:hover { text-decoration: underline; }

  .tactic-badge {
    display: inline-block;
    padding: 0.15rem 0.5rem;
    border-radius: 999px;
    font-size: 0.7rem;
    background: var(--bg-tertiary);
    color: var(--text-muted);
    border: 1px solid var(--border);
  }

  .evidence-block {
    margin-top: 0.4rem;
    padding-left: 0.75rem;
    border-left: 2px solid rgba(6, 182, 212, 0.3);
    font-size: 0.8rem;
  }

  .evidence-quote {
    color: var(--text-secondary);
    font-style: italic;
  }

  .evidence-source {
    color: var(--text-muted);
    font-size: 0.75rem;
  }

  .confidence-row {
    display: flex;
    align-items: flex-start;
    gap: 0.75rem;
    padding: 0.75rem;
    border-radius: 6px;
    background: rgba(37, 40, 48, 0.5);
    margin-bottom: 0.5rem;
  }

  .conf-badge {
    padding: 0.2rem 0.6rem;
    border-radius: 4px;
    font-size: 0.75rem;
    font-weight: 600;
    flex-shrink: 0;
  }

  .conf-high { background: rgba(34, 197, 94, 0.1); color: #22c55e; }
  .conf-moderate { background: rgba(245, 158, 11, 0.1); color: #f59e0b; }
  .conf-low { background: rgba(239, 68, 68, 0.1); color: #ef4444; }

  .endnote {
    font-size: 0.85rem;
    color: var(--text-secondary);
    margin-bottom: 0.6rem;
    padding-left: 1.5rem;
    text-indent: -1.5rem;
  }

  .endnote a {
    color: var(--accent);
    text-decoration: none;
    word-break: break-all;
  }

  .endnote a:hover { text-decoration: underline; }

  .bib-entry {
    font-size: 0.85rem;
    color: var(--text-secondary);
    margin-bottom: 0.8rem;
    padding-left: 2rem;
    text-indent: -2rem;
  }

  .bib-entry a {
    color: var(--accent);
    text-decoration: none;
    word-break: break-all;
  }

  .bib-entry a:hover { text-decoration: underline; }

  .ta-grid {
    display: grid;
    grid-template-columns: 1fr 1fr;
    gap: 0.5rem 1.5rem;
    font-size: 0.9rem;
  }

  .ta-label { color: var(--text-muted); }
  .ta-value { color: var(--text-primary); }

  .tool-tag {
    display: inline-block;
    padding: 0.15rem 0.5rem;
    border-radius: 4px;
    font-size: 0.8rem;
    background: var(--bg-tertiary);
    color: var(--text-secondary);
    border: 1px solid var(--border);
    margin: 0.15rem 0.15rem 0 0;
  }

  .footer {
    text-align: center;
    font-size: 0.8rem;
    color: var(--text-muted);
    margin-top: 2rem;
    padding-top: 1rem;
    border-top: 1px solid var(--border);
  }

  @media print {
    body {
      background: #fff;
      color: #1a1a1a;
      padding: 1rem;
      max-width: 100%%;
    }

    .tlp-banner {
      background: #fff;
      border: 2px solid var(--tlp-color);
      -webkit-print-color-adjust: exact;
      print-color-adjust: exact;
    }

    .report-header, .section {
      background: #fff;
      border: 1px solid #ddd;
      break-inside: avoid;
    }

    .bluf {
      background: #f0f9ff;
      border: 1px solid #bae6fd;
    }

    h1, h2 { color: #111; }
    .section-content, td { color: #333; }
    .meta, .ta-label, .tactic-badge { color: #666; }

    .attack-id, .ioc-value, .endnote a, .bib-entry a, .footnote-ref {
      color: #0369a1;
    }

    table { font-size: 0.8rem; }
    th { border-bottom: 2px solid #333; color: #333; }
    td { border-bottom: 1px solid #ddd; }
  }
</style>
</head>
<body>`
