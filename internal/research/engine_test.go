package research

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyberbrief/cyberbrief/internal/config"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

func testCfg(t *testing.T, yamlBody string) *config.Cfg {
	t.Helper()
	for _, k := range []string{"PERPLEXITY_API_KEY", "BRAVE_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	return cfg
}

// noNetwork fails the test if any request is attempted.
func noNetwork(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected network call to %s", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testEngine(t *testing.T, cfg *config.Cfg, braveURL, pplxURL, geminiURL string) *Engine {
	t.Helper()
	e := NewEngine(cfg)
	e.httpc = &http.Client{}
	e.braveURL = braveURL
	e.perplexityURL = pplxURL
	e.geminiURL = geminiURL
	return e
}

const sonarFixture = `{
  "choices": [{"message": {"content": "{\"bluf\": \"Actor remains active.\", \"search_results\": [{\"title\": \"Vendor report\", \"url\": \"https://vendor.example/report\", \"snippet\": \"Details of the campaign.\"}], \"synthesized_content\": \"Full analysis of the campaign.\", \"iocs\": [{\"type\": \"ip\", \"value\": \"203.0.113.7\", \"context\": \"C2 server\"}], \"techniques\": [{\"id\": \"T1566.001\", \"name\": \"Spearphishing Attachment\", \"tactic\": \"Initial Access\", \"description\": \"Used in initial delivery\"}]}"}}],
  "citations": ["https://vendor.example/report", "https://other.example/analysis"]
}`

const geminiFixture = `{
  "candidates": [{"content": {"parts": [{"text": "{\"bluf\": \"Summary.\", \"synthesized_content\": \"Synthesis of sources.\", \"iocs\": [{\"type\": \"domain\", \"value\": \"evil.example.net\", \"context\": \"phishing lure\"}], \"attack_techniques\": [{\"technique_id\": \"T1059\", \"name\": \"Command and Scripting Interpreter\", \"tactic\": \"Execution\", \"description\": \"PowerShell stagers\"}]}"}]}}]
}`

const braveFixture = `{
  "web": {"results": [
    {"title": "Threat report", "url": "https://blog.example/a", "description": "APT activity observed", "page_age": "2025-11-02"},
    {"title": "Advisory", "url": "https://cert.example/b", "description": "Mitigation guidance"}
  ]}
}`

func TestRunRejectsInvalidInput(t *testing.T) {
	srv := noNetwork(t)
	e := testEngine(t, testCfg(t, ""), srv.URL, srv.URL, srv.URL)

	_, err := e.Run(context.Background(), model.ResearchRequest{Tier: model.TierFree}, nil)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("empty topic: want ValidationError, got %v", err)
	}

	_, err = e.Run(context.Background(), model.ResearchRequest{Topic: "x", Tier: "ULTRA"}, nil)
	if !errors.As(err, &verr) {
		t.Fatalf("bad tier: want ValidationError, got %v", err)
	}
}

func TestStandardTierRequiresKeyBeforeNetwork(t *testing.T) {
	srv := noNetwork(t)
	e := testEngine(t, testCfg(t, ""), srv.URL, srv.URL, srv.URL)

	_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "APT29", Tier: model.TierStandard}, nil)
	var merr *model.MissingCredentialError
	if !errors.As(err, &merr) {
		t.Fatalf("want MissingCredentialError, got %v", err)
	}
	if merr.Provider != "Perplexity" {
		t.Errorf("provider = %q, want Perplexity", merr.Provider)
	}
}

func TestDeepTierRequiresKeyBeforeNetwork(t *testing.T) {
	srv := noNetwork(t)
	e := testEngine(t, testCfg(t, ""), srv.URL, srv.URL, srv.URL)

	_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "Volt Typhoon", Tier: model.TierDeep}, nil)
	var merr *model.MissingCredentialError
	if !errors.As(err, &merr) {
		t.Fatalf("want MissingCredentialError, got %v", err)
	}
}

func TestStandardTierSonar(t *testing.T) {
	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pplx-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sonarFixture))
	}))
	defer pplx.Close()

	e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: pplx-test\n"), "", pplx.URL, "")

	bundle, err := e.Run(context.Background(), model.ResearchRequest{Topic: "APT29 phishing", Tier: model.TierStandard}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bundle.Tier != model.TierStandard {
		t.Errorf("tier = %s", bundle.Tier)
	}
	if bundle.SynthesizedContent != "Full analysis of the campaign." {
		t.Errorf("synthesized = %q", bundle.SynthesizedContent)
	}
	if len(bundle.ExtractedIOCs) != 1 || bundle.ExtractedIOCs[0].Type != model.IOCIPv4 {
		t.Fatalf("iocs = %+v", bundle.ExtractedIOCs)
	}
	if len(bundle.SuggestedTechniques) != 1 || bundle.SuggestedTechniques[0].TechniqueID != "T1566.001" {
		t.Fatalf("techniques = %+v", bundle.SuggestedTechniques)
	}
	// Second citation URL is not in search_results and must be appended.
	if len(bundle.SearchResults) != 2 {
		t.Fatalf("search results = %+v", bundle.SearchResults)
	}
	if bundle.Metadata.SynthesisModel != "sonar" {
		t.Errorf("synthesis model = %q", bundle.Metadata.SynthesisModel)
	}
	if len(bundle.Sources) == 0 {
		t.Error("expected sources populated from search results")
	}
}

func TestFreeTierPrefersSonarWhenKeyed(t *testing.T) {
	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sonarFixture))
	}))
	defer pplx.Close()
	brave := noNetwork(t)

	e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: pplx-test\n"), brave.URL, pplx.URL, brave.URL)

	bundle, err := e.Run(context.Background(), model.ResearchRequest{Topic: "LockBit", Tier: model.TierFree}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bundle.Tier != model.TierFree {
		t.Errorf("tier = %s", bundle.Tier)
	}
	if bundle.Metadata.SearchProvider != "perplexity-sonar (free tier)" {
		t.Errorf("provider = %q", bundle.Metadata.SearchProvider)
	}
}

func TestFreeTierBraveGeminiFallback(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "brave-test" {
			t.Errorf("token = %q", got)
		}
		w.Write([]byte(braveFixture))
	}))
	defer brave.Close()
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Goog-Api-Key"); got != "gem-test" {
			t.Errorf("key = %q", got)
		}
		w.Write([]byte(geminiFixture))
	}))
	defer gemini.Close()

	e := testEngine(t, testCfg(t, "providers:\n  brave_key: brave-test\n  gemini_key: gem-test\n"), brave.URL, "", gemini.URL)

	var stages []string
	bundle, err := e.Run(context.Background(), model.ResearchRequest{Topic: "ransomware campaign", Tier: model.TierFree}, func(s string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bundle.Metadata.SearchProvider != "brave" || bundle.Metadata.SynthesisModel != "gemini-2.0-flash" {
		t.Errorf("metadata = %+v", bundle.Metadata)
	}
	if len(bundle.SearchResults) != 2 {
		t.Errorf("search results = %d", len(bundle.SearchResults))
	}
	if len(bundle.ExtractedIOCs) != 1 || bundle.ExtractedIOCs[0].Value != "evil.example.net" {
		t.Errorf("iocs = %+v", bundle.ExtractedIOCs)
	}
	if len(bundle.SuggestedTechniques) != 1 || bundle.SuggestedTechniques[0].TechniqueID != "T1059" {
		t.Errorf("techniques = %+v", bundle.SuggestedTechniques)
	}
	want := []string{"searching", "synthesizing", "complete"}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v", stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], want[i])
		}
	}
}

func TestFreeTierMissingFallbackKeys(t *testing.T) {
	srv := noNetwork(t)
	e := testEngine(t, testCfg(t, ""), srv.URL, srv.URL, srv.URL)

	_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "x", Tier: model.TierFree}, nil)
	var merr *model.MissingCredentialError
	if !errors.As(err, &merr) {
		t.Fatalf("want MissingCredentialError, got %v", err)
	}
}

func TestFreeTierQuotaExhaustion(t *testing.T) {
	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sonarFixture))
	}))
	defer pplx.Close()

	e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: k\n"), "", pplx.URL, "")
	e.quota = NewFreeQuota(1)

	if _, err := e.Run(context.Background(), model.ResearchRequest{Topic: "a", Tier: model.TierFree}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "b", Tier: model.TierFree}, nil)
	var rerr *model.RateLimitedError
	if !errors.As(err, &rerr) {
		t.Fatalf("want RateLimitedError, got %v", err)
	}

	// Paid tiers are unaffected by the free quota.
	if _, err := e.Run(context.Background(), model.ResearchRequest{Topic: "c", Tier: model.TierStandard}, nil); err != nil {
		t.Fatalf("standard after quota: %v", err)
	}
}

func TestFreeTierQuotaReturnedOnFailure(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer brave.Close()

	e := testEngine(t, testCfg(t, "providers:\n  brave_key: bad\n  gemini_key: g\n"), brave.URL, "", "")
	e.quota = NewFreeQuota(5)

	_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "x", Tier: model.TierFree}, nil)
	var perr *model.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProviderError, got %v", err)
	}
	if got := e.quota.Remaining(); got != 5 {
		t.Errorf("remaining = %d, want 5", got)
	}
}

func TestRequestKeysOverrideConfig(t *testing.T) {
	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer from-request" {
			t.Errorf("Authorization = %q, request key should win", got)
		}
		w.Write([]byte(sonarFixture))
	}))
	defer pplx.Close()

	e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: from-config\n"), "", pplx.URL, "")

	_, err := e.Run(context.Background(), model.ResearchRequest{
		Topic:   "x",
		Tier:    model.TierStandard,
		APIKeys: &model.APIKeys{Perplexity: "from-request"},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestProviderErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var e *model.ProviderError
			return errors.As(err, &e)
		}},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var e *model.RateLimitedError
			return errors.As(err, &e)
		}},
		{"server error", http.StatusBadGateway, func(err error) bool {
			var e *model.ProviderError
			return errors.As(err, &e)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer pplx.Close()

			e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: k\n"), "", pplx.URL, "")
			_, err := e.Run(context.Background(), model.ResearchRequest{Topic: "x", Tier: model.TierStandard}, nil)
			if !tt.check(err) {
				t.Errorf("status %d mapped to %v", tt.status, err)
			}
		})
	}
}

func TestRunFromSourcesText(t *testing.T) {
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiFixture))
	}))
	defer gemini.Close()

	e := testEngine(t, testCfg(t, "providers:\n  gemini_key: g\n"), "", "", gemini.URL)

	bundle, err := e.RunFromSources(context.Background(), model.SourceResearchRequest{
		Topic: "Internal incident",
		Sources: []model.SourceInput{
			{Type: "text", Value: "Observed beaconing to evil.example.net from host WS-042.", Label: "IR notes"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("RunFromSources: %v", err)
	}
	if bundle.Topic != "Internal incident" {
		t.Errorf("topic = %q", bundle.Topic)
	}
	if bundle.Metadata.SearchProvider != "user-sources" {
		t.Errorf("provider = %q", bundle.Metadata.SearchProvider)
	}
	if len(bundle.ExtractedIOCs) != 1 {
		t.Errorf("iocs = %+v", bundle.ExtractedIOCs)
	}
}

func TestRunFromSourcesPerplexityModel(t *testing.T) {
	pplx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sonarFixture))
	}))
	defer pplx.Close()

	e := testEngine(t, testCfg(t, "providers:\n  perplexity_key: p\n"), "", pplx.URL, "")

	bundle, err := e.RunFromSources(context.Background(), model.SourceResearchRequest{
		Topic: "Internal incident",
		Sources: []model.SourceInput{
			{Type: "text", Value: "Observed beaconing to evil.example.net.", Label: "IR notes"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("RunFromSources: %v", err)
	}
	if bundle.Metadata.SynthesisModel != "perplexity-sonar" {
		t.Errorf("synthesis model = %q, want perplexity-sonar", bundle.Metadata.SynthesisModel)
	}
}

func TestRunFromSourcesValidation(t *testing.T) {
	srv := noNetwork(t)
	e := testEngine(t, testCfg(t, ""), srv.URL, srv.URL, srv.URL)

	var verr *model.ValidationError

	_, err := e.RunFromSources(context.Background(), model.SourceResearchRequest{Topic: "x"}, nil)
	if !errors.As(err, &verr) {
		t.Errorf("no sources: want ValidationError, got %v", err)
	}

	many := make([]model.SourceInput, MaxSourceCount+1)
	for i := range many {
		many[i] = model.SourceInput{Type: "text", Value: "x"}
	}
	_, err = e.RunFromSources(context.Background(), model.SourceResearchRequest{Topic: "x", Sources: many}, nil)
	if !errors.As(err, &verr) {
		t.Errorf("too many sources: want ValidationError, got %v", err)
	}
}
