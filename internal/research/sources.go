package research

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

const (
	MaxSourceCount = 20
	MaxTextLength  = 500_000
	MaxPDFBytes    = 10 * 1024 * 1024
	maxSnippetLen  = 10_000
)

var (
	titleRe         = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe        = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe         = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	chromeRe        = regexp.MustCompile(`(?is)<(nav|header|footer)[^>]*>.*?</(?:nav|header|footer)>`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
	numericEntityRe = regexp.MustCompile(`&#\d+;`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// extractSources turns user-provided inputs into SearchResult entries the
// synthesis pipeline already understands. Failed sources are skipped, not
// fatal; the caller decides what to do with an empty set.
func (e *Engine) extractSources(ctx context.Context, sources []model.SourceInput) []model.SearchResult {
	var out []model.SearchResult
	for _, src := range sources {
		switch src.Type {
		case "url":
			if r, ok := e.extractFromURL(ctx, src.Value); ok {
				out = append(out, r)
			}
		case "text":
			label := src.Label
			if label == "" {
				label = "User-provided text"
			}
			out = append(out, extractFromText(src.Value, label))
		case "pdf":
			raw, err := base64.StdEncoding.DecodeString(src.Value)
			if err != nil {
				util.PrintWarningf("Failed to decode PDF source: %v", err)
				continue
			}
			label := src.Label
			if label == "" {
				label = "Uploaded PDF"
			}
			if r, ok := extractPDFBytes(raw, label); ok {
				out = append(out, r)
			}
		default:
			util.PrintWarning("Unknown source type: " + src.Type)
		}
	}
	return out
}

// extractFromURL fetches a URL and extracts readable text. PDFs are detected
// by content type or extension and routed through the PDF extractor.
func (e *Engine) extractFromURL(ctx context.Context, url string) (model.SearchResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		util.PrintWarningf("Failed to fetch URL %s: %v", url, err)
		return model.SearchResult{}, false
	}
	req.Header.Set("User-Agent", "CyberBRIEF/1.0 (Threat Intelligence Research)")

	resp, err := e.httpc.Do(req)
	if err != nil {
		util.PrintWarningf("Failed to fetch URL %s: %v", url, err)
		return model.SearchResult{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.PrintWarningf("Failed to fetch URL %s: status %d", url, resp.StatusCode)
		return model.SearchResult{}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPDFBytes+1))
	if err != nil {
		util.PrintWarningf("Failed to read URL %s: %v", url, err)
		return model.SearchResult{}, false
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "pdf") || strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return extractPDFBytes(body, pdfTitleFromURL(url))
	}

	text := string(body)
	title := extractTitle(text)
	if title == "" {
		title = url
	}

	return model.SearchResult{
		Title:   title,
		URL:     url,
		Snippet: util.Truncate(stripHTML(text), maxSnippetLen),
	}, true
}

func extractFromText(text, label string) model.SearchResult {
	return model.SearchResult{
		Title:   label,
		URL:     "user-input",
		Snippet: util.Truncate(text, maxSnippetLen),
	}
}

func extractPDFBytes(content []byte, label string) (model.SearchResult, bool) {
	if len(content) > MaxPDFBytes {
		util.PrintWarningf("PDF too large (%d bytes), skipping: %s", len(content), label)
		return model.SearchResult{}, false
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		util.PrintWarningf("PDF extraction failed for %s: %v", label, err)
		return model.SearchResult{}, false
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		if sb.Len() > maxSnippetLen {
			break
		}
	}

	return model.SearchResult{
		Title:   label,
		URL:     label,
		Snippet: util.Truncate(sb.String(), maxSnippetLen),
	}, true
}

func pdfTitleFromURL(url string) string {
	name := path.Base(url)
	name = strings.TrimSuffix(name, ".pdf")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" || name == "." || name == "/" {
		return url
	}
	return name
}

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	title := strings.TrimSpace(m[1])
	title = decodeEntities(title)
	return util.Truncate(title, 200)
}

// stripHTML removes markup and collapses whitespace. Script, style, and
// common page-chrome blocks go first so their contents never leak into the
// extracted text.
func stripHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = chromeRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = decodeEntities(text)
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
	return numericEntityRe.ReplaceAllString(r.Replace(s), "")
}

// combinedSourceTopic packs extracted source material into a single prompt
// topic for Perplexity synthesis.
func combinedSourceTopic(topic string, results []model.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nAnalyze the following source material:\nTopic: %s\n\nSources:\n", topic, topic)
	for _, r := range results {
		fmt.Fprintf(&sb, "\n--- %s (%s) ---\n%s\n", r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}
