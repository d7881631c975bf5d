// Package ioc extracts indicators of compromise from free text using regex
// patterns. A value is reported under at most one IOC type; hash patterns are
// length-discriminated and checked longest first so a SHA256 never doubles as
// a SHA1 or MD5.
package ioc

import (
	"regexp"
	"strings"

	"github.com/cyberbrief/cyberbrief/pkg/model"
)

var (
	// IPv4: dotted quad with octet validation.
	ipv4Re = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\b`)

	// IPv6: simplified but covers full, compressed, link-local and IPv4-mapped forms.
	ipv6Re = regexp.MustCompile(`\b(?:` +
		`(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}|` +
		`(?:[0-9a-fA-F]{1,4}:){1,7}:|` +
		`(?:[0-9a-fA-F]{1,4}:){1,6}:[0-9a-fA-F]{1,4}|` +
		`::(?:[0-9a-fA-F]{1,4}:){0,5}[0-9a-fA-F]{1,4}|` +
		`fe80:(?::[0-9a-fA-F]{0,4}){0,4}%[0-9a-zA-Z]+|` +
		`::(?:ffff(?::0{1,4})?:)?(?:(?:25[0-5]|(?:2[0-4]|1?[0-9])?[0-9])\.){3}(?:25[0-5]|(?:2[0-4]|1?[0-9])?[0-9])` +
		`)\b`)

	urlRe = regexp.MustCompile(`(?i)https?://[^\s<>"')\]},;]+`)

	// Domains: restricted to a TLD allowlist to keep false positives down.
	domainRe = regexp.MustCompile(`(?i)\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+(?:com|net|org|io|ru|cn|de|uk|co|info|biz|xyz|top|cc|tk|ml|ga|cf|gq|pw|onion|gov|mil|edu)\b`)

	md5Re    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
	sha1Re   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	sha256Re = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)

	cveRe = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
)

// Known false-positive domains to exclude.
var excludedDomains = map[string]struct{}{
	"example.com":   {},
	"example.org":   {},
	"example.net":   {},
	"localhost.com": {},
	"schema.org":    {},
	"w3.org":        {},
	"google.com":    {},
	"github.com":    {},
	"wikipedia.org": {},
	"microsoft.com": {},
	"apple.com":     {},
	"mozilla.org":   {},
}

// Non-routable placeholder addresses. Public resolvers such as 8.8.8.8 stay in:
// they appear as legitimate C2 camouflage and analysts expect them reported.
var excludedIPs = map[string]struct{}{
	"0.0.0.0":         {},
	"127.0.0.1":       {},
	"255.255.255.255": {},
}

const contextWindow = 100

// Extract pulls all recognized indicators out of text, deduplicated by
// (type, value). Malformed input never errors; no matches yields an empty list.
func Extract(text string) []model.IOC {
	seen := make(map[[2]string]struct{})
	iocs := make([]model.IOC, 0)

	add := func(typ model.IOCType, value, context string) {
		key := [2]string{string(typ), value}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		iocs = append(iocs, model.IOC{Type: typ, Value: value, Context: context, Sources: []string{}})
	}

	// SHA256 first: the longest hash wins, shorter patterns would match inside it.
	for _, m := range sha256Re.FindAllStringIndex(text, -1) {
		value := strings.ToLower(text[m[0]:m[1]])
		add(model.IOCSHA256, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range sha1Re.FindAllStringIndex(text, -1) {
		value := strings.ToLower(text[m[0]:m[1]])
		if containedIn(iocs, value, model.IOCSHA256) {
			continue
		}
		add(model.IOCSHA1, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range md5Re.FindAllStringIndex(text, -1) {
		value := strings.ToLower(text[m[0]:m[1]])
		if containedIn(iocs, value, model.IOCSHA256, model.IOCSHA1) {
			continue
		}
		add(model.IOCMD5, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range cveRe.FindAllStringIndex(text, -1) {
		value := strings.ToUpper(text[m[0]:m[1]])
		add(model.IOCCVE, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range ipv4Re.FindAllStringIndex(text, -1) {
		value := text[m[0]:m[1]]
		if _, excluded := excludedIPs[value]; excluded {
			continue
		}
		add(model.IOCIPv4, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range ipv6Re.FindAllStringIndex(text, -1) {
		value := strings.ToLower(text[m[0]:m[1]])
		add(model.IOCIPv6, value, contextOf(text, m[0], m[1]))
	}

	for _, m := range urlRe.FindAllStringIndex(text, -1) {
		value := strings.TrimRight(text[m[0]:m[1]], ".,;:)")
		add(model.IOCURL, value, contextOf(text, m[0], m[1]))
	}

	// Domains last: skip anything already claimed by a captured URL.
	urls := make([]string, 0)
	for _, ioc := range iocs {
		if ioc.Type == model.IOCURL {
			urls = append(urls, ioc.Value)
		}
	}
	for _, m := range domainRe.FindAllStringIndex(text, -1) {
		value := strings.TrimRight(strings.ToLower(text[m[0]:m[1]]), ".")
		if _, excluded := excludedDomains[value]; excluded {
			continue
		}
		inURL := false
		for _, u := range urls {
			if strings.Contains(u, value) {
				inURL = true
				break
			}
		}
		if inURL {
			continue
		}
		add(model.IOCDomain, value, contextOf(text, m[0], m[1]))
	}

	return iocs
}

// Merge deduplicates IOCs from multiple extraction passes by (type, value),
// keeping the first record and merging source lists.
func Merge(lists ...[]model.IOC) []model.IOC {
	seen := make(map[[2]string]int)
	merged := make([]model.IOC, 0)

	for _, list := range lists {
		for _, ioc := range list {
			key := [2]string{string(ioc.Type), ioc.Value}
			if idx, ok := seen[key]; ok {
				merged[idx].Sources = mergeSources(merged[idx].Sources, ioc.Sources)
				continue
			}
			seen[key] = len(merged)
			if ioc.Sources == nil {
				ioc.Sources = []string{}
			}
			merged = append(merged, ioc)
		}
	}

	return merged
}

func mergeSources(a, b []string) []string {
	have := make(map[string]struct{}, len(a))
	for _, s := range a {
		have[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := have[s]; !ok {
			a = append(a, s)
			have[s] = struct{}{}
		}
	}
	return a
}

// containedIn reports whether value occurs inside an already-extracted IOC of
// one of the given types. Guards short hashes matching inside longer ones.
func containedIn(iocs []model.IOC, value string, types ...model.IOCType) bool {
	for _, ioc := range iocs {
		for _, t := range types {
			if ioc.Type == t && strings.Contains(ioc.Value, value) {
				return true
			}
		}
	}
	return false
}

// contextOf extracts a sentence-level window around a match, capped at 200 chars.
func contextOf(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}

	snippet := strings.TrimSpace(text[lo:hi])

	// Advance past the first sentence boundary before the match.
	for _, ch := range []string{".", "!", "?", "\n"} {
		if idx := strings.Index(snippet, ch); idx != -1 && idx < start-lo {
			snippet = strings.TrimSpace(snippet[idx+1:])
			break
		}
	}

	// Cut trailing partial sentence.
	for _, ch := range []string{".", "!", "?", "\n"} {
		if idx := strings.LastIndex(snippet, ch); idx > 0 {
			snippet = strings.TrimSpace(snippet[:idx+1])
			break
		}
	}

	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return snippet
}
