package model

// This is the pkg/model/model.go file, which contains the domain model for CyberBRIEF.
// Every type here mirrors the JSON wire format the frontend consumes, so the json
// tags are camelCase and must stay stable across the API surface.

// ───────────────────────────── Enums ─────────────────────────────

// Tier selects the research pipeline: free keyword search, standard
// citation-backed research, or extended deep research.
type Tier string

const (
	TierFree     Tier = "FREE"
	TierStandard Tier = "STANDARD"
	TierDeep     Tier = "DEEP"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStandard, TierDeep:
		return true
	}
	return false
}

// TLPLevel is the Traffic Light Protocol marking attached to a report.
type TLPLevel string

const (
	TLPClear       TLPLevel = "TLP:CLEAR"
	TLPGreen       TLPLevel = "TLP:GREEN"
	TLPAmber       TLPLevel = "TLP:AMBER"
	TLPAmberStrict TLPLevel = "TLP:AMBER+STRICT"
	TLPRed         TLPLevel = "TLP:RED"
)

// Valid reports whether the TLP marking is one of the known values.
func (t TLPLevel) Valid() bool {
	switch t {
	case TLPClear, TLPGreen, TLPAmber, TLPAmberStrict, TLPRed:
		return true
	}
	return false
}

// ConfidenceLevel follows the Low/Moderate/High convention of analytic tradecraft.
type ConfidenceLevel string

const (
	ConfidenceLow      ConfidenceLevel = "Low"
	ConfidenceModerate ConfidenceLevel = "Moderate"
	ConfidenceHigh     ConfidenceLevel = "High"
)

// IOCType is the fixed enumeration of indicator shapes the extractor recognizes.
type IOCType string

const (
	IOCIPv4   IOCType = "ipv4"
	IOCIPv6   IOCType = "ipv6"
	IOCDomain IOCType = "domain"
	IOCURL    IOCType = "url"
	IOCMD5    IOCType = "md5"
	IOCSHA1   IOCType = "sha1"
	IOCSHA256 IOCType = "sha256"
	IOCCVE    IOCType = "cve"
)

// ───────────────────────────── IOC ─────────────────────────────

// IOC is a single extracted indicator of compromise. Values are never mutated
// after creation; duplicates collapse into one record with merged sources.
type IOC struct {
	Type    IOCType  `json:"type"`
	Value   string   `json:"value"`
	Context string   `json:"context,omitempty"`
	Sources []string `json:"sources"`
}

// ───────────────────────────── ATT&CK ─────────────────────────────

// Evidence is a supporting quote for a technique mapping.
type Evidence struct {
	Quote  string `json:"quote"`
	Source string `json:"source"`
}

// AttackTechnique is a MITRE ATT&CK technique tag attached to a report.
type AttackTechnique struct {
	TechniqueID string     `json:"techniqueId"`
	Name        string     `json:"name"`
	Tactic      string     `json:"tactic"`
	Description string     `json:"description"`
	Evidence    []Evidence `json:"evidence"`
}

// ───────────────────────────── Threat actor ─────────────────────────────

// ThreatActorProfile holds what could be inferred about the primary actor.
// Absence of an actor is tolerated; the profile then carries the topic name only.
type ThreatActorProfile struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases"`
	Attribution string   `json:"attribution"`
	FirstSeen   string   `json:"firstSeen,omitempty"`
	LastActive  string   `json:"lastActive,omitempty"`
	Tooling     []string `json:"tooling"`
	Notes       string   `json:"notes,omitempty"`
}

// ───────────────────────────── Report ─────────────────────────────

// ReportSection is one titled block of the report body. Citations are source
// index references in "[N]" format and must resolve into Report.Sources.
type ReportSection struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
}

// ReportSource is a bibliography entry carried through from the search step.
type ReportSource struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	AccessedAt string `json:"accessedAt"`
	Snippet    string `json:"snippet,omitempty"`
}

// ConfidenceAssessment grades a single finding.
type ConfidenceAssessment struct {
	Finding    string          `json:"finding"`
	Confidence ConfidenceLevel `json:"confidence"`
	Rationale  string          `json:"rationale"`
}

// Report is the finished intelligence product. Created once per successful
// generation and immutable thereafter except for deletion.
type Report struct {
	ID                    string                 `json:"id"`
	Topic                 string                 `json:"topic"`
	CreatedAt             string                 `json:"createdAt"`
	Tier                  Tier                   `json:"tier"`
	TLP                   TLPLevel               `json:"tlp"`
	BLUF                  string                 `json:"bluf"`
	ThreatActor           ThreatActorProfile     `json:"threatActor"`
	Sections              []ReportSection        `json:"sections"`
	IOCs                  []IOC                  `json:"iocs"`
	AttackMapping         []AttackTechnique      `json:"attackMapping"`
	Sources               []ReportSource         `json:"sources"`
	Footnotes             []string               `json:"footnotes"`
	Bibliography          []string               `json:"bibliography"`
	ConfidenceAssessments []ConfidenceAssessment `json:"confidenceAssessments"`
}

// ───────────────────────────── Search / research ─────────────────────────────

// SearchResult is a single hit from the search provider.
type SearchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	PublishedDate string `json:"publishedDate,omitempty"`
}

// ResearchMetadata carries timing and provenance for a research run.
type ResearchMetadata struct {
	SearchDurationMs    int64  `json:"searchDurationMs"`
	SynthesisDurationMs int64  `json:"synthesisDurationMs"`
	TotalDurationMs     int64  `json:"totalDurationMs"`
	SearchProvider      string `json:"searchProvider"`
	SynthesisModel      string `json:"synthesisModel"`
}

// ResearchBundle is the dispatcher's contract: raw search results, a synthesized
// narrative, and preliminary IOC/technique suggestions.
type ResearchBundle struct {
	Topic               string            `json:"topic"`
	Tier                Tier              `json:"tier"`
	SearchResults       []SearchResult    `json:"searchResults"`
	SynthesizedContent  string            `json:"synthesizedContent"`
	ExtractedIOCs       []IOC             `json:"extractedIOCs"`
	SuggestedTechniques []AttackTechnique `json:"suggestedTechniques"`
	Sources             []ReportSource    `json:"sources"`
	Metadata            ResearchMetadata  `json:"metadata"`
}

// ───────────────────────────── API bodies ─────────────────────────────

// APIKeys is the BYOK credential bundle the frontend may pass with a request.
// Keys here take precedence over server-side environment variables.
type APIKeys struct {
	Perplexity string `json:"perplexity,omitempty"`
	OpenAI     string `json:"openai,omitempty"`
	Anthropic  string `json:"anthropic,omitempty"`
	Gemini     string `json:"gemini,omitempty"`
	Brave      string `json:"brave,omitempty"`
}

// ResearchRequest is the body of POST /api/research.
type ResearchRequest struct {
	Topic   string   `json:"topic"`
	Tier    Tier     `json:"tier"`
	APIKeys *APIKeys `json:"apiKeys,omitempty"`
}

// SourceInput is a single user-provided source for from-sources research.
// Type is "url", "text", or "pdf" (base64-encoded bytes in Value).
type SourceInput struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// SourceResearchRequest is the body of POST /api/research/from-sources.
type SourceResearchRequest struct {
	Topic   string        `json:"topic"`
	Sources []SourceInput `json:"sources"`
	APIKeys *APIKeys      `json:"apiKeys,omitempty"`
}

// ReportSettings tunes report generation.
type ReportSettings struct {
	ReportType string   `json:"reportType,omitempty"` // "full", "weekly", or "both"
	DefaultTLP TLPLevel `json:"defaultTlp,omitempty"`
}

// ReportGenerateRequest is the body of POST /api/report/generate.
type ReportGenerateRequest struct {
	Bundle   ResearchBundle  `json:"bundle"`
	Settings *ReportSettings `json:"settings,omitempty"`
}

// NavigatorRequest is the body of POST /api/attack/navigator.
type NavigatorRequest struct {
	Techniques []AttackTechnique `json:"techniques"`
	Topic      string            `json:"topic,omitempty"`
}

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is how every failure surfaces to the caller.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
