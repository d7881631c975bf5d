package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

const geminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

func geminiSynthesisPrompt(topic string, results []model.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\nURL: %s\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	return fmt.Sprintf(`You are a cyber threat intelligence analyst. Synthesize the following search results into an intelligence assessment.

TOPIC: %s

SEARCH RESULTS:
%s

Provide your response as a JSON object with this exact structure:
{
  "bluf": "Bottom Line Up Front: 2-3 sentence executive summary",
  "synthesized_content": "Detailed analysis covering: campaign overview, tactics/techniques/procedures, victimology, infrastructure, indicators of compromise, and defensive recommendations. Reference source numbers like [1], [2].",
  "iocs": [
    {
      "type": "ip|domain|hash_md5|hash_sha1|hash_sha256|url|cve",
      "value": "The indicator value",
      "context": "Where/how this IOC was observed"
    }
  ],
  "attack_techniques": [
    {
      "technique_id": "T1566.001",
      "name": "Spearphishing Attachment",
      "tactic": "Initial Access",
      "description": "How this technique was used"
    }
  ]
}

Extract every indicator of compromise present in the sources. Map observed TTPs to MITRE ATT&CK. Only report what the sources support.`, topic, sb.String())
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// synthesizeGemini turns Brave search results into an analytic bundle. Used on
// the free tier when no Perplexity key is configured.
func (e *Engine) synthesizeGemini(ctx context.Context, topic string, results []model.SearchResult, apiKey string) (*model.ResearchBundle, error) {
	if apiKey == "" {
		return nil, &model.MissingCredentialError{Provider: "Gemini", Tier: model.TierFree}
	}

	start := time.Now()

	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: geminiSynthesisPrompt(topic, results)}}},
		},
		GenerationConfig: geminiGenerationConfig{Temperature: 0.1, MaxOutputTokens: 8192},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, geminiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.geminiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", apiKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			util.PrintError("Gemini timed out for topic: " + topic)
			return nil, &model.ProviderTimeoutError{Provider: "Gemini", Timeout: geminiTimeout}
		}
		return nil, &model.ProviderError{Provider: "Gemini", Detail: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		return nil, &model.ProviderError{Provider: "Gemini", Status: resp.StatusCode, Detail: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.RateLimitedError{Detail: "Gemini rate limit exceeded. Try again later."}
	case resp.StatusCode != http.StatusOK:
		return nil, &model.ProviderError{Provider: "Gemini", Status: resp.StatusCode}
	}

	var raw geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &model.ProviderError{Provider: "Gemini", Detail: "malformed response: " + err.Error()}
	}
	if len(raw.Candidates) == 0 || len(raw.Candidates[0].Content.Parts) == 0 {
		return nil, &model.ProviderError{Provider: "Gemini", Detail: "empty response"}
	}

	content := raw.Candidates[0].Content.Parts[0].Text
	durationMs := util.DurationMs(start)
	util.PrintInfof("Gemini synthesis completed in %dms for: %s", durationMs, topic)

	bundle := &model.ResearchBundle{
		Topic:               topic,
		Tier:                model.TierFree,
		SearchResults:       results,
		SynthesizedContent:  content,
		ExtractedIOCs:       []model.IOC{},
		SuggestedTechniques: []model.AttackTechnique{},
		Sources:             []model.ReportSource{},
		Metadata: model.ResearchMetadata{
			SynthesisDurationMs: durationMs,
			SearchProvider:      "brave",
			SynthesisModel:      "gemini-2.0-flash",
		},
	}

	if doc, ok := decodeSynthesis(content); ok {
		if doc.SynthesizedContent != "" {
			bundle.SynthesizedContent = doc.SynthesizedContent
		}
		bundle.ExtractedIOCs = docIOCs(doc)
		bundle.SuggestedTechniques = docTechniques(doc)
	}

	now := util.NowISO()
	for _, sr := range results {
		bundle.Sources = append(bundle.Sources, model.ReportSource{
			Title:      sr.Title,
			URL:        sr.URL,
			AccessedAt: now,
			Snippet:    util.Truncate(sr.Snippet, 200),
		})
	}

	return bundle, nil
}
