package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// Patterns that indicate cyber-specific topics.
var (
	aptPattern = regexp.MustCompile(`(?i)\bAPT\d+\b`)
	cvePattern = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
)

var threatKeywords = []string{"malware", "ransomware", "phishing", "exploit", "vulnerability", "campaign"}

var actorNames = []string{"fancy bear", "cozy bear", "sandworm", "lazarus", "volt typhoon"}

// enhanceQuery adds cyber-specific search terms to improve results.
func enhanceQuery(query string) string {
	lower := strings.ToLower(query)

	var addition string
	switch {
	case aptPattern.MatchString(query) || containsAny(lower, actorNames):
		addition = "threat actor MITRE ATT&CK campaign"
	case cvePattern.MatchString(query):
		addition = "exploit vulnerability IOC remediation"
	case containsAny(lower, threatKeywords):
		addition = "threat intelligence IOC MITRE"
	default:
		addition = "cyber threat intelligence"
	}

	enhanced := query + " " + addition
	util.PrintInfo("Enhanced query: " + enhanced)
	return enhanced
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	} `json:"web"`
}

// searchBrave queries Brave web search for threat intelligence sources.
// count is capped at 20 per the API contract.
func (e *Engine) searchBrave(ctx context.Context, query string, count int, apiKey string) ([]model.SearchResult, error) {
	if apiKey == "" {
		return nil, &model.MissingCredentialError{Provider: "Brave Search", Tier: model.TierFree}
	}
	if count > 20 {
		count = 20
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", enhanceQuery(query))
	params.Set("count", fmt.Sprintf("%d", count))
	params.Set("text_decorations", "false")
	params.Set("search_lang", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.braveURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			util.PrintError("Brave Search timed out for query: " + query)
			return nil, &model.ProviderTimeoutError{Provider: "Brave Search", Timeout: searchTimeout}
		}
		return nil, &model.ProviderError{Provider: "Brave Search", Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &model.ProviderError{Provider: "Brave Search", Status: resp.StatusCode, Detail: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.RateLimitedError{Detail: "Brave Search rate limit exceeded. Try again later."}
	case resp.StatusCode != http.StatusOK:
		return nil, &model.ProviderError{Provider: "Brave Search", Status: resp.StatusCode, Detail: "search failed"}
	}

	var decoded braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &model.ProviderError{Provider: "Brave Search", Detail: "malformed response: " + err.Error()}
	}

	results := make([]model.SearchResult, 0, count)
	for i, item := range decoded.Web.Results {
		if i >= count {
			break
		}
		results = append(results, model.SearchResult{
			Title:         item.Title,
			URL:           item.URL,
			Snippet:       item.Description,
			PublishedDate: item.PageAge,
		})
	}

	util.PrintInfof("Brave Search returned %d results for: %s", len(results), query)
	return results, nil
}
