package research

import (
	"context"
	"net/http"
	"time"

	"github.com/cyberbrief/cyberbrief/internal/config"
	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

const (
	searchTimeout = 15 * time.Second
	sonarTimeout  = 60 * time.Second
	geminiTimeout = 60 * time.Second
	deepTimeout   = 5 * time.Minute
)

// ProgressFunc receives stage updates while a research run is in flight.
type ProgressFunc func(stage string)

// Engine coordinates search and synthesis providers by tier.
type Engine struct {
	cfg   *config.Cfg
	quota *FreeQuota
	httpc *http.Client

	braveURL      string
	perplexityURL string
	geminiURL     string
}

func NewEngine(cfg *config.Cfg) *Engine {
	limits := cfg.Snapshot().Limits
	return &Engine{
		cfg:           cfg,
		quota:         NewFreeQuota(limits.FreeTierDaily),
		httpc:         &http.Client{},
		braveURL:      braveSearchURL,
		perplexityURL: perplexityAPIURL,
		geminiURL:     geminiAPIURL,
	}
}

// resolveKeys merges request-supplied keys over the server configuration.
// Keys sent with the request always win.
func (e *Engine) resolveKeys(keys *model.APIKeys) model.APIKeys {
	providers := e.cfg.Snapshot().Providers
	resolved := model.APIKeys{
		Perplexity: providers.PerplexityKey,
		Brave:      providers.BraveKey,
		Gemini:     providers.GeminiKey,
	}
	if keys != nil {
		if keys.Perplexity != "" {
			resolved.Perplexity = keys.Perplexity
		}
		if keys.Brave != "" {
			resolved.Brave = keys.Brave
		}
		if keys.Gemini != "" {
			resolved.Gemini = keys.Gemini
		}
	}
	return resolved
}

// Run executes the research pipeline for a topic at the requested tier.
// progress may be nil.
func (e *Engine) Run(ctx context.Context, req model.ResearchRequest, progress ProgressFunc) (*model.ResearchBundle, error) {
	if req.Topic == "" {
		return nil, model.Validationf("topic is required")
	}
	if !req.Tier.Valid() {
		return nil, model.Validationf("unknown research tier: %s", req.Tier)
	}

	keys := e.resolveKeys(req.APIKeys)
	totalStart := time.Now()

	switch req.Tier {
	case model.TierFree:
		return e.runFreeTier(ctx, req.Topic, keys, totalStart, progress)
	case model.TierStandard, model.TierDeep:
		if keys.Perplexity == "" {
			return nil, &model.MissingCredentialError{Provider: "Perplexity", Tier: req.Tier}
		}
		notify(progress, "researching")
		var bundle *model.ResearchBundle
		var err error
		if req.Tier == model.TierStandard {
			bundle, err = e.searchPerplexitySonar(ctx, req.Topic, keys.Perplexity)
		} else {
			bundle, err = e.deepResearchPerplexity(ctx, req.Topic, keys.Perplexity)
		}
		if err != nil {
			return nil, err
		}
		bundle.Metadata.TotalDurationMs = util.DurationMs(totalStart)
		notify(progress, "complete")
		return bundle, nil
	}
	return nil, model.Validationf("unknown research tier: %s", req.Tier)
}

// runFreeTier prefers a server-side Perplexity key, falling back to
// Brave Search plus Gemini synthesis. Every run consumes daily quota.
func (e *Engine) runFreeTier(ctx context.Context, topic string, keys model.APIKeys, totalStart time.Time, progress ProgressFunc) (*model.ResearchBundle, error) {
	if err := e.quota.Take(); err != nil {
		return nil, err
	}

	if keys.Perplexity != "" {
		util.PrintInfo("Free tier using Perplexity Sonar for: " + topic)
		notify(progress, "researching")
		bundle, err := e.searchPerplexitySonar(ctx, topic, keys.Perplexity)
		if err != nil {
			e.quota.Return()
			return nil, err
		}
		bundle.Tier = model.TierFree
		bundle.Metadata.TotalDurationMs = util.DurationMs(totalStart)
		bundle.Metadata.SearchProvider = "perplexity-sonar (free tier)"
		notify(progress, "complete")
		return bundle, nil
	}

	// Both fallback keys must exist before any network call goes out.
	if keys.Brave == "" {
		e.quota.Return()
		return nil, &model.MissingCredentialError{Provider: "Brave", Tier: model.TierFree}
	}
	if keys.Gemini == "" {
		e.quota.Return()
		return nil, &model.MissingCredentialError{Provider: "Gemini", Tier: model.TierFree}
	}

	util.PrintInfo("Free tier fallback: Brave Search for topic: " + topic)
	notify(progress, "searching")
	searchStart := time.Now()
	results, err := e.searchBrave(ctx, topic, 10, keys.Brave)
	if err != nil {
		e.quota.Return()
		return nil, err
	}
	searchMs := util.DurationMs(searchStart)
	util.PrintInfof("Brave Search completed in %dms, got %d results", searchMs, len(results))

	if len(results) == 0 {
		e.quota.Return()
		return nil, model.Validationf("no search results found for %q. Try a different query.", topic)
	}

	notify(progress, "synthesizing")
	synthStart := time.Now()
	bundle, err := e.synthesizeGemini(ctx, topic, results, keys.Gemini)
	if err != nil {
		e.quota.Return()
		return nil, err
	}

	bundle.Metadata = model.ResearchMetadata{
		SearchDurationMs:    searchMs,
		SynthesisDurationMs: util.DurationMs(synthStart),
		TotalDurationMs:     util.DurationMs(totalStart),
		SearchProvider:      "brave",
		SynthesisModel:      "gemini-2.0-flash",
	}
	notify(progress, "complete")
	return bundle, nil
}

// RunFromSources researches user-supplied material instead of the open web.
// URLs are fetched server-side; text and base64 PDFs are used as given.
func (e *Engine) RunFromSources(ctx context.Context, req model.SourceResearchRequest, progress ProgressFunc) (*model.ResearchBundle, error) {
	if req.Topic == "" {
		return nil, model.Validationf("topic is required")
	}
	if len(req.Sources) == 0 {
		return nil, model.Validationf("at least one source is required")
	}
	if len(req.Sources) > MaxSourceCount {
		return nil, model.Validationf("too many sources: %d (limit %d)", len(req.Sources), MaxSourceCount)
	}

	keys := e.resolveKeys(req.APIKeys)
	totalStart := time.Now()

	notify(progress, "extracting")
	extractStart := time.Now()
	results := e.extractSources(ctx, req.Sources)
	if len(results) == 0 {
		return nil, model.Validationf("no content could be extracted from the provided sources")
	}
	extractMs := util.DurationMs(extractStart)
	util.PrintInfof("Extracted content from %d/%d sources in %dms", len(results), len(req.Sources), extractMs)

	notify(progress, "synthesizing")
	synthStart := time.Now()

	var bundle *model.ResearchBundle
	var err error
	var synthesisModel string

	if keys.Perplexity != "" {
		util.PrintInfof("Synthesizing %d sources via Perplexity Sonar", len(results))
		bundle, err = e.searchPerplexitySonar(ctx, combinedSourceTopic(req.Topic, results), keys.Perplexity)
		synthesisModel = "perplexity-sonar"
	} else {
		if keys.Gemini == "" {
			return nil, &model.MissingCredentialError{Provider: "Gemini", Tier: model.TierFree}
		}
		util.PrintInfof("Synthesizing %d sources via Gemini Flash (fallback)", len(results))
		bundle, err = e.synthesizeGemini(ctx, req.Topic, results, keys.Gemini)
		synthesisModel = "gemini-2.0-flash"
	}
	if err != nil {
		return nil, err
	}

	bundle.Topic = req.Topic
	bundle.Metadata = model.ResearchMetadata{
		SearchDurationMs:    extractMs,
		SynthesisDurationMs: util.DurationMs(synthStart),
		TotalDurationMs:     util.DurationMs(totalStart),
		SearchProvider:      "user-sources",
		SynthesisModel:      synthesisModel,
	}
	notify(progress, "complete")
	return bundle, nil
}

func notify(progress ProgressFunc, stage string) {
	if progress != nil {
		progress(stage)
	}
}
