// Package report assembles finished intelligence products out of research
// bundles: BLUF, sectioned analysis, confidence grading, and Chicago
// notes-bibliography citations.
package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

// SourceType selects the Chicago citation variant for a source.
type SourceType string

const (
	SourceWeb        SourceType = "web"
	SourceGovernment SourceType = "government"
	SourceVendor     SourceType = "vendor"
)

// formatDate renders an RFC3339 timestamp as "Month Day, Year". Unparseable
// input comes back unchanged.
func formatDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%s %d, %d", t.Month().String(), t.Day(), t.Year())
}

// extractSiteName derives a readable organization name from a URL host.
func extractSiteName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "Unknown"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return capitalize(parts[len(parts)-2])
	}
	return capitalize(host)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func splitAuthor(author string) (first, last string) {
	parts := strings.Fields(author)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

// FormatFootnote renders a full first-citation note.
//
// Web, no author:  1. "Title," Site, accessed Month Day, Year, URL.
// Web, author:     1. First Last, "Title," Site, Month Day, Year, URL.
// Government:      1. Org, *Title*, Month Day, Year, URL.
// Vendor:          1. Org, "Title," Month Day, Year, URL.
func FormatFootnote(src model.ReportSource, number int, author string, sourceType SourceType) string {
	title := src.Title
	if title == "" {
		title = "Untitled"
	}
	date := formatDate(src.AccessedAt)
	site := extractSiteName(src.URL)

	switch sourceType {
	case SourceGovernment:
		org := author
		if org == "" {
			org = site
		}
		return fmt.Sprintf("%d. %s, *%s*, %s, %s.", number, org, title, date, src.URL)
	case SourceVendor:
		org := author
		if org == "" {
			org = site
		}
		return fmt.Sprintf(`%d. %s, "%s," %s, %s.`, number, org, title, date, src.URL)
	}

	if author != "" {
		first, last := splitAuthor(author)
		name := last
		if first != "" {
			name = first + " " + last
		}
		return fmt.Sprintf(`%d. %s, "%s," %s, %s, %s.`, number, name, title, site, date, src.URL)
	}
	return fmt.Sprintf(`%d. "%s," %s, accessed %s, %s.`, number, title, site, date, src.URL)
}

// FormatShortNote renders the shortened subsequent-citation form:
// 6. Last, "First Four Words...".
func FormatShortNote(src model.ReportSource, number int, author string) string {
	title := src.Title
	if title == "" {
		title = "Untitled"
	}
	words := strings.Fields(title)
	short := title
	if len(words) > 4 {
		short = strings.Join(words[:4], " ") + "..."
	}

	if author != "" {
		_, last := splitAuthor(author)
		return fmt.Sprintf(`%d. %s, "%s."`, number, last, short)
	}
	return fmt.Sprintf(`%d. "%s."`, number, short)
}

// FormatBibliographyEntry renders a bibliography entry. Author names invert
// to Last, First; no-author sources alphabetize by title.
func FormatBibliographyEntry(src model.ReportSource, author string, sourceType SourceType) string {
	title := src.Title
	if title == "" {
		title = "Untitled"
	}
	date := formatDate(src.AccessedAt)
	site := extractSiteName(src.URL)

	switch sourceType {
	case SourceGovernment:
		org := author
		if org == "" {
			org = site
		}
		return fmt.Sprintf("%s. *%s*. %s. %s.", org, title, date, src.URL)
	case SourceVendor:
		org := author
		if org == "" {
			org = site
		}
		return fmt.Sprintf(`%s. "%s." %s. %s.`, org, title, date, src.URL)
	}

	if author != "" {
		first, last := splitAuthor(author)
		name := last
		if first != "" {
			name = last + ", " + first
		}
		return fmt.Sprintf(`%s. "%s." %s. %s. %s.`, name, title, site, date, src.URL)
	}
	return fmt.Sprintf(`"%s." %s. Accessed %s. %s.`, title, site, date, src.URL)
}

// Bibliography formats all sources as alphabetically sorted entries.
func Bibliography(sources []model.ReportSource) []string {
	entries := make([]string, 0, len(sources))
	for _, src := range sources {
		entries = append(entries, FormatBibliographyEntry(src, "", SourceWeb))
	}
	sort.Slice(entries, func(i, j int) bool {
		return sortKey(entries[i]) < sortKey(entries[j])
	})
	return entries
}

func sortKey(entry string) string {
	return strings.ToLower(strings.TrimLeft(entry, `"`))
}

// Endnotes formats all sources as sequentially numbered full notes. Every
// source is treated as a first occurrence.
func Endnotes(sources []model.ReportSource) []string {
	notes := make([]string, 0, len(sources))
	for i, src := range sources {
		notes = append(notes, FormatFootnote(src, i+1, "", SourceWeb))
	}
	return notes
}
