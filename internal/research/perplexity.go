package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

const perplexityAPIURL = "https://api.perplexity.ai/chat/completions"

func sonarPrompt(topic string) string {
	return fmt.Sprintf(`You are a senior cyber threat intelligence analyst. Research the following topic thoroughly and provide a comprehensive intelligence assessment.

TOPIC: %s

Provide your response as a JSON object with this exact structure:
{
  "bluf": "Bottom Line Up Front: 2-3 sentence executive summary",
  "search_results": [
    {
      "title": "Source title",
      "url": "Source URL",
      "snippet": "Key information from this source"
    }
  ],
  "synthesized_content": "Detailed analysis covering: campaign overview, tactics/techniques/procedures, victimology, infrastructure, indicators of compromise, and defensive recommendations. Cite sources inline.",
  "iocs": [
    {
      "type": "ip|domain|hash_md5|hash_sha1|hash_sha256|url|cve",
      "value": "The indicator value",
      "context": "Where/how this IOC was observed"
    }
  ],
  "techniques": [
    {
      "id": "T1566.001",
      "name": "Spearphishing Attachment",
      "tactic": "Initial Access",
      "description": "How this technique was used"
    }
  ]
}

Be thorough. Extract ALL indicators of compromise mentioned. Map ALL observed TTPs to MITRE ATT&CK. Cite your sources.`, topic)
}

func deepPrompt(topic string) string {
	return fmt.Sprintf(`Conduct a deep, comprehensive cyber threat intelligence investigation on the following topic. This is for a professional intelligence report.

TOPIC: %s

Research extensively and provide your response as a JSON object:
{
  "bluf": "Bottom Line Up Front: 2-3 sentence executive summary of the most critical findings",
  "search_results": [
    {
      "title": "Source title",
      "url": "Source URL",
      "snippet": "Key intelligence from this source"
    }
  ],
  "synthesized_content": "Comprehensive multi-section analysis covering:\n\n## Campaign Overview\n...\n\n## Threat Actor Profile\n...\n\n## Tactics, Techniques & Procedures\n...\n\n## Victimology\n...\n\n## Infrastructure Analysis\n...\n\n## Indicators of Compromise\n...\n\n## Defensive Recommendations\n...\n\n## Intelligence Gaps\n...",
  "iocs": [
    {
      "type": "ip|domain|hash_md5|hash_sha1|hash_sha256|url|cve",
      "value": "The indicator value",
      "context": "Detailed context of this IOC"
    }
  ],
  "techniques": [
    {
      "id": "T1566.001",
      "name": "Spearphishing Attachment",
      "tactic": "Initial Access",
      "description": "Detailed description of how this technique was employed"
    }
  ]
}

Be exhaustive. This is a DEEP research report. Cover every angle. Extract every IOC. Map every TTP. Identify intelligence gaps.`, topic)
}

type perplexityRequest struct {
	Model                  string              `json:"model"`
	Messages               []perplexityMessage `json:"messages"`
	Temperature            float64             `json:"temperature"`
	ReturnCitations        bool                `json:"return_citations"`
	ReturnRelatedQuestions bool                `json:"return_related_questions"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// searchPerplexitySonar runs citation-backed research with Perplexity Sonar.
// Serves the STANDARD tier and the FREE tier when a server-side key exists.
func (e *Engine) searchPerplexitySonar(ctx context.Context, topic, apiKey string) (*model.ResearchBundle, error) {
	return e.perplexity(ctx, topic, apiKey, "sonar", sonarPrompt(topic), sonarTimeout,
		"You are a cyber threat intelligence analyst. Always respond with valid JSON. Be thorough and cite sources.",
		model.TierStandard, "perplexity-sonar")
}

// deepResearchPerplexity runs the extended sonar-deep-research model. Requests
// are allowed to run for minutes; the caller holds the client connection open.
func (e *Engine) deepResearchPerplexity(ctx context.Context, topic, apiKey string) (*model.ResearchBundle, error) {
	return e.perplexity(ctx, topic, apiKey, "sonar-deep-research", deepPrompt(topic), deepTimeout,
		"You are a senior cyber threat intelligence analyst conducting deep research. Provide exhaustive analysis with valid JSON output. Cite all sources.",
		model.TierDeep, "perplexity-deep-research")
}

func (e *Engine) perplexity(ctx context.Context, topic, apiKey, modelName, prompt string, timeout time.Duration, systemPrompt string, tier model.Tier, providerLabel string) (*model.ResearchBundle, error) {
	if apiKey == "" {
		return nil, &model.MissingCredentialError{Provider: "Perplexity", Tier: tier}
	}

	start := time.Now()

	payload := perplexityRequest{
		Model: modelName,
		Messages: []perplexityMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:     0.1,
		ReturnCitations: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.perplexityURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			util.PrintError("Perplexity timed out for topic: " + topic)
			return nil, &model.ProviderTimeoutError{Provider: "Perplexity", Timeout: timeout}
		}
		return nil, &model.ProviderError{Provider: "Perplexity", Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &model.ProviderError{Provider: "Perplexity", Status: resp.StatusCode, Detail: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.RateLimitedError{Detail: "Perplexity rate limit exceeded. Try again later."}
	case resp.StatusCode != http.StatusOK:
		return nil, &model.ProviderError{Provider: "Perplexity", Status: resp.StatusCode}
	}

	var raw perplexityResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &model.ProviderError{Provider: "Perplexity", Detail: "malformed response: " + err.Error()}
	}
	if len(raw.Choices) == 0 {
		return nil, &model.ProviderError{Provider: "Perplexity", Detail: "empty response"}
	}

	durationMs := util.DurationMs(start)
	util.PrintInfof("Perplexity %s completed in %dms for: %s", modelName, durationMs, topic)

	bundle := parsePerplexityContent(raw.Choices[0].Message.Content, raw.Citations, tier)
	bundle.Topic = topic
	bundle.Metadata = model.ResearchMetadata{
		SearchDurationMs: durationMs,
		TotalDurationMs:  durationMs,
		SearchProvider:   providerLabel,
		SynthesisModel:   modelName,
	}

	// Carry search hits into the bibliography.
	now := util.NowISO()
	for _, sr := range bundle.SearchResults {
		bundle.Sources = append(bundle.Sources, model.ReportSource{
			Title:      sr.Title,
			URL:        sr.URL,
			AccessedAt: now,
			Snippet:    util.Truncate(sr.Snippet, 200),
		})
	}

	return bundle, nil
}

// parsePerplexityContent turns the assistant message into a bundle. Citation
// URLs missing from the structured search results are appended untitled.
func parsePerplexityContent(content string, citations []string, tier model.Tier) *model.ResearchBundle {
	doc, ok := decodeSynthesis(content)
	if !ok {
		searchResults := make([]model.SearchResult, 0, len(citations))
		for i, u := range citations {
			searchResults = append(searchResults, model.SearchResult{Title: fmt.Sprintf("Source %d", i+1), URL: u})
		}
		return &model.ResearchBundle{
			Tier:                tier,
			SearchResults:       searchResults,
			SynthesizedContent:  content,
			ExtractedIOCs:       []model.IOC{},
			SuggestedTechniques: []model.AttackTechnique{},
			Sources:             []model.ReportSource{},
		}
	}

	searchResults := make([]model.SearchResult, 0, len(doc.SearchResults)+len(citations))
	existing := make(map[string]struct{})
	for _, sr := range doc.SearchResults {
		searchResults = append(searchResults, model.SearchResult{Title: sr.Title, URL: sr.URL, Snippet: sr.Snippet})
		existing[sr.URL] = struct{}{}
	}
	for _, u := range citations {
		if _, ok := existing[u]; !ok {
			searchResults = append(searchResults, model.SearchResult{URL: u})
		}
	}

	synthesized := doc.SynthesizedContent
	if synthesized == "" {
		synthesized = doc.BLUF
	}
	if synthesized == "" {
		synthesized = content
	}

	return &model.ResearchBundle{
		Tier:                tier,
		SearchResults:       searchResults,
		SynthesizedContent:  synthesized,
		ExtractedIOCs:       docIOCs(doc),
		SuggestedTechniques: docTechniques(doc),
		Sources:             []model.ReportSource{},
	}
}
