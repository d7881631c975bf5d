package export

import (
	"strings"
	"testing"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func TestHTMLStructure(t *testing.T) {
	page := HTML(sampleReport())

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>APT29 Cloud Intrusions — CyberBRIEF</title>",
		"--tlp-color: #f59e0b;",
		`<div class="tlp-banner">TLP:AMBER — Limited disclosure, restricted to participants&#39; organizations.</div>`,
		"<h1>APT29 Cloud Intrusions</h1>",
		`<div class="bluf-label">BLUF — Bottom Line Up Front</div>`,
		"<h2>Threat Actor Profile</h2>",
		"<h2>Indicators of Compromise</h2>",
		"<h2>MITRE ATT&amp;CK Mapping</h2>",
		`href="https://attack.mitre.org/techniques/T1110/003"`,
		"<h2>Confidence Assessments</h2>",
		`class="conf-badge conf-moderate"`,
		`<div class="endnote" id="endnote-1">`,
		"<h2>Bibliography</h2>",
		"@media print",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}

	// TLP banner appears at top and bottom.
	if got := strings.Count(page, `class="tlp-banner"`); got != 2 {
		t.Errorf("tlp banners = %d, want 2", got)
	}
}

func TestHTMLFootnoteLinks(t *testing.T) {
	rpt := sampleReport()
	rpt.Sections = []model.ReportSection{
		{ID: "s", Title: "S", Content: "See the vendor report [1] for details.", Citations: []string{"[1]"}},
	}
	page := HTML(rpt)
	if !strings.Contains(page, `<a class="footnote-ref" href="#endnote-1" title="See endnote 1">[1]</a>`) {
		t.Error("citation marker not converted to footnote link")
	}
}

func TestHTMLEscapesContent(t *testing.T) {
	rpt := sampleReport()
	rpt.Topic = `<script>alert("x")</script>`
	rpt.Sections = []model.ReportSection{
		{ID: "s", Title: "S", Content: `Payload was <img src=x onerror=alert(1)>`, Citations: []string{}},
	}
	page := HTML(rpt)
	if strings.Contains(page, `<script>alert`) {
		t.Error("topic not escaped")
	}
	if strings.Contains(page, "<img src=x") {
		t.Error("section content not escaped")
	}
}

func TestHTMLUnknownTLPFallsBackToGreen(t *testing.T) {
	rpt := sampleReport()
	rpt.TLP = "TLP:PURPLE"
	page := HTML(rpt)
	if !strings.Contains(page, "--tlp-color: #22c55e;") {
		t.Error("unknown TLP should fall back to green styling")
	}
}

func TestHTMLEmptyReport(t *testing.T) {
	rpt := &model.Report{
		ID:        "0000000000000000",
		Topic:     "Empty",
		CreatedAt: "2026-08-20T09:00:00Z",
		Tier:      model.TierFree,
		TLP:       model.TLPGreen,
	}
	page := HTML(rpt)
	if !strings.Contains(page, "No sources to cite.") || !strings.Contains(page, "No sources.") {
		t.Error("empty placeholders missing")
	}
	if strings.Contains(page, "<h2>Indicators of Compromise</h2>") {
		t.Error("empty IOC table should be omitted")
	}
}
