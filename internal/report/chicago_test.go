package report

import (
	"sort"
	"strings"
	"testing"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

var testSource = model.ReportSource{
	Title:      "Midnight Blizzard Targets Cloud Environments",
	URL:        "https://www.microsoft.com/security/blog/midnight-blizzard",
	AccessedAt: "2026-08-15T12:30:00Z",
}

func TestFormatFootnoteNoAuthor(t *testing.T) {
	got := FormatFootnote(testSource, 1, "", SourceWeb)
	want := `1. "Midnight Blizzard Targets Cloud Environments," Microsoft, accessed August 15, 2026, https://www.microsoft.com/security/blog/midnight-blizzard.`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormatFootnoteWithAuthor(t *testing.T) {
	got := FormatFootnote(testSource, 2, "Jane Smith", SourceWeb)
	want := `2. Jane Smith, "Midnight Blizzard Targets Cloud Environments," Microsoft, August 15, 2026, https://www.microsoft.com/security/blog/midnight-blizzard.`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormatFootnoteGovernment(t *testing.T) {
	src := model.ReportSource{
		Title:      "Alert AA24-038A",
		URL:        "https://www.cisa.gov/advisories/aa24-038a",
		AccessedAt: "2026-08-15T12:30:00Z",
	}
	got := FormatFootnote(src, 3, "CISA", SourceGovernment)
	want := "3. CISA, *Alert AA24-038A*, August 15, 2026, https://www.cisa.gov/advisories/aa24-038a."
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormatFootnoteVendor(t *testing.T) {
	got := FormatFootnote(testSource, 4, "Microsoft Threat Intelligence", SourceVendor)
	if !strings.HasPrefix(got, `4. Microsoft Threat Intelligence, "Midnight Blizzard`) {
		t.Errorf("got %q", got)
	}
}

func TestFormatShortNote(t *testing.T) {
	got := FormatShortNote(testSource, 6, "Jane Smith")
	want := `6. Smith, "Midnight Blizzard Targets Cloud...."`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}

	got = FormatShortNote(model.ReportSource{Title: "Short title"}, 7, "")
	want = `7. "Short title."`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFormatBibliographyEntry(t *testing.T) {
	got := FormatBibliographyEntry(testSource, "Jane Smith", SourceWeb)
	want := `Smith, Jane. "Midnight Blizzard Targets Cloud Environments." Microsoft. August 15, 2026. https://www.microsoft.com/security/blog/midnight-blizzard.`
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}

	got = FormatBibliographyEntry(testSource, "", SourceWeb)
	if !strings.HasPrefix(got, `"Midnight Blizzard`) || !strings.Contains(got, "Accessed August 15, 2026") {
		t.Errorf("no-author entry = %q", got)
	}
}

func TestBibliographySorted(t *testing.T) {
	sources := []model.ReportSource{
		{Title: "Zebra report", URL: "https://z.example/a", AccessedAt: "2026-08-01T00:00:00Z"},
		{Title: "Alpha advisory", URL: "https://a.example/b", AccessedAt: "2026-08-01T00:00:00Z"},
	}
	entries := Bibliography(sources)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	keys := []string{sortKey(entries[0]), sortKey(entries[1])}
	if !sort.StringsAreSorted(keys) {
		t.Errorf("entries not sorted: %v", entries)
	}
	if !strings.Contains(entries[0], "Alpha advisory") {
		t.Errorf("first entry = %q", entries[0])
	}
}

func TestEndnotesNumbering(t *testing.T) {
	sources := []model.ReportSource{
		{Title: "First", URL: "https://a.example"},
		{Title: "Second", URL: "https://b.example"},
	}
	notes := Endnotes(sources)
	if len(notes) != 2 {
		t.Fatalf("notes = %d", len(notes))
	}
	if !strings.HasPrefix(notes[0], "1. ") || !strings.HasPrefix(notes[1], "2. ") {
		t.Errorf("numbering wrong: %v", notes)
	}
}

func TestFormatDateFallback(t *testing.T) {
	if got := formatDate("not-a-date"); got != "not-a-date" {
		t.Errorf("got %q", got)
	}
	if got := formatDate(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestExtractSiteName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://www.microsoft.com/blog", "Microsoft"},
		{"https://blog.talosintelligence.com/post", "Talosintelligence"},
		{"not a url", "Unknown"},
	}
	for _, tt := range tests {
		if got := extractSiteName(tt.in); got != tt.want {
			t.Errorf("extractSiteName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
