package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cyberbrief/cyberbrief/internal/ioc"
	"github.com/cyberbrief/cyberbrief/internal/util"
	"github.com/cyberbrief/cyberbrief/pkg/model"
)

var (
	sentenceSplitRe = regexp.MustCompile(`(?:[.!?])\s+`)
	akaRe           = regexp.MustCompile(`(?i)(?:also known as|a\.?k\.?a\.?|aliases?[:\s]+)([^.]+)`)
	attributionRe   = regexp.MustCompile(`(?i)(?:attributed to|linked to|associated with|backed by|sponsored by)\s+([^.,:;]+)`)
	toolingRe       = regexp.MustCompile(`(?i)(?:using|deploys?|utiliz(?:es?|ing)|leverag(?:es?|ing)|tools?\s+(?:include|such as))\s+([^.]+)`)
	listSplitRe     = regexp.MustCompile(`[,;/]|\band\b`)
)

// newReportID derives a 16-hex-char ID from the topic and the current
// timestamp. Two generations for the same topic never collide.
func newReportID(topic string) string {
	raw := topic + ":" + util.NowISO()
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// assessConfidence grades a finding by source-count convergence:
// five or more independent sources is High, three is Moderate, fewer is Low.
func assessConfidence(sourceCount int, finding string) model.ConfidenceAssessment {
	switch {
	case sourceCount >= 5:
		return model.ConfidenceAssessment{
			Finding:    finding,
			Confidence: model.ConfidenceHigh,
			Rationale: fmt.Sprintf("High — based on %d converging sources with consistent reporting across multiple vendors and outlets.",
				sourceCount),
		}
	case sourceCount >= 3:
		return model.ConfidenceAssessment{
			Finding:    finding,
			Confidence: model.ConfidenceModerate,
			Rationale: fmt.Sprintf("Moderate — %d sources provide partial corroboration; some gaps in independent verification remain.",
				sourceCount),
		}
	default:
		return model.ConfidenceAssessment{
			Finding:    finding,
			Confidence: model.ConfidenceLow,
			Rationale: fmt.Sprintf("Low — limited to %d source(s); insufficient independent corroboration for high confidence.",
				sourceCount),
		}
	}
}

// buildBLUF composes the Bottom Line Up Front:
// "We assess that [outcome] is [likelihood] because [driver]. Confidence: [tag]."
func buildBLUF(topic, content string, sourceCount int) string {
	var likelihood, tag string
	switch {
	case sourceCount >= 5:
		likelihood = "likely in the near-term (0–3 months)"
		tag = "High"
	case sourceCount >= 3:
		likelihood = "likely within the mid-term (3–12 months)"
		tag = "Moderate"
	default:
		likelihood = "possible but unconfirmed in the near-term"
		tag = "Low"
	}

	driver := "available open-source reporting"
	for _, s := range sentenceSplitRe.Split(content, -1) {
		s = strings.TrimSpace(s)
		if len(s) > 30 {
			driver = s
			break
		}
	}
	if len(driver) > 200 {
		driver = driver[:197] + "..."
	}
	driver = lowerFirst(driver)

	return fmt.Sprintf("We assess that threats related to %s are %s because %s Confidence: %s.",
		topic, likelihood, driver, tag)
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// extractThreatActor infers an actor profile from the narrative. The topic
// is the baseline name; aliases, attribution, and tooling come from common
// reporting phrasings.
func extractThreatActor(topic, content string) model.ThreatActorProfile {
	profile := model.ThreatActorProfile{
		Name:        strings.TrimSpace(topic),
		Aliases:     []string{},
		Attribution: "Unknown",
		Tooling:     []string{},
	}

	if m := akaRe.FindStringSubmatch(content); m != nil {
		profile.Aliases = splitNamedList(m[1])
	}
	if m := attributionRe.FindStringSubmatch(content); m != nil {
		profile.Attribution = util.Truncate(strings.TrimSpace(m[1]), 100)
	}
	if m := toolingRe.FindStringSubmatch(content); m != nil {
		profile.Tooling = splitNamedList(m[1])
	}

	return profile
}

func splitNamedList(raw string) []string {
	var out []string
	for _, part := range listSplitRe.Split(raw, -1) {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), ","))
		if len(part) > 1 && len(part) < 60 {
			out = append(out, part)
		}
		if len(out) == 10 {
			break
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func buildSections(topic, content string, sources []model.ReportSource, iocs []model.IOC, techniques []model.AttackTechnique, reportType string) []model.ReportSection {
	paragraphs := splitParagraphs(content)

	refs := make([]string, len(sources))
	for i := range sources {
		refs[i] = fmt.Sprintf("[%d]", i+1)
	}
	cite := func(n int) []string {
		if n > len(refs) {
			n = len(refs)
		}
		out := make([]string, n)
		copy(out, refs[:n])
		return out
	}

	firstMatching := func(keywords []string) string {
		for _, p := range paragraphs {
			lower := strings.ToLower(p)
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					return p
				}
			}
		}
		return ""
	}

	var sections []model.ReportSection
	add := func(id, title, body string, cites []string) {
		if cites == nil {
			cites = []string{}
		}
		sections = append(sections, model.ReportSection{ID: id, Title: title, Content: body, Citations: cites})
	}

	execSummary := fmt.Sprintf("Analysis of %s.", topic)
	if len(paragraphs) > 0 {
		execSummary = paragraphs[0]
	}
	add("executive-summary", "Executive Summary", execSummary, cite(3))

	actorContent := firstMatching([]string{"actor", "group", "apt", "threat", "attributed", "campaign"})
	if actorContent == "" && len(paragraphs) > 1 {
		actorContent = paragraphs[1]
	}
	if actorContent == "" {
		actorContent = fmt.Sprintf("Threat actor analysis for %s.", topic)
	}
	add("actors", "Threat Actors", actorContent, cite(4))

	targetsContent := firstMatching([]string{"target", "victim", "sector", "industry", "organization"})
	if targetsContent == "" {
		targetsContent = "Target information was not explicitly identified in available sources."
	}
	add("targets", "Targets & Victimology", targetsContent, cite(3))

	intentContent := firstMatching([]string{"intent", "motiv", "objective", "goal", "purpose", "espionage", "financial"})
	if intentContent == "" {
		intentContent = "Motivations inferred from observed behavior and targeting patterns."
	}
	add("intentions", "Intentions & Motivations", intentContent, cite(2))

	if reportType == "full" || reportType == "both" {
		add("ttps", "Tactics, Techniques & Procedures (TTPs)", ttpContent(paragraphs, techniques, firstMatching), cite(len(refs)))

		toolsContent := firstMatching([]string{"malware", "tool", "implant", "backdoor", "payload", "ransomware"})
		if toolsContent == "" {
			toolsContent = "Specific tooling details were not identified in the current research scope."
		}
		add("tools-malware", "Tools & Malware", toolsContent, cite(3))

		add("iocs", "Indicators of Compromise (IOCs)", iocTableContent(iocs), cite(2))
	}

	assessmentContent := lastUnusedParagraph(paragraphs, execSummary, actorContent, targetsContent, intentContent)
	if assessmentContent == "" {
		assessmentContent = fmt.Sprintf("Continued monitoring of %s is recommended.", topic)
	}
	add("assessment", "Assessment & Outlook", assessmentContent, cite(len(refs)))

	remediationContent := firstMatching([]string{"mitigat", "remediat", "patch", "recommend", "defend", "protect"})
	if remediationContent == "" {
		remediationContent = "Organizations should monitor for associated IOCs, apply relevant patches, " +
			"and review network telemetry for signs of compromise. Consult vendor advisories " +
			"for specific mitigation guidance."
	}
	add("remediation", "Remediation & Recommendations", remediationContent, cite(3))

	return sections
}

func splitParagraphs(content string) []string {
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 && strings.TrimSpace(content) != "" {
		out = []string{content}
	}
	return out
}

func ttpContent(paragraphs []string, techniques []model.AttackTechnique, firstMatching func([]string) string) string {
	if len(techniques) > 0 {
		lines := make([]string, 0, len(techniques))
		for _, t := range techniques {
			lines = append(lines, fmt.Sprintf("**%s — %s** (%s): %s", t.TechniqueID, t.Name, t.Tactic, t.Description))
		}
		return strings.Join(lines, "\n\n")
	}
	if body := firstMatching([]string{"technique", "tactic", "procedure", "ttp", "attack"}); body != "" {
		return body
	}
	return "Detailed TTPs require further analysis from primary source material."
}

func iocTableContent(iocs []model.IOC) string {
	if len(iocs) == 0 {
		return "No indicators of compromise were automatically extracted from the available sources."
	}
	var sb strings.Builder
	sb.WriteString("| Type | Value | Context |\n|------|-------|---------|")
	limit := len(iocs)
	if limit > 20 {
		limit = 20
	}
	for _, entry := range iocs[:limit] {
		ctx := entry.Context
		if ctx == "" {
			ctx = "—"
		}
		fmt.Fprintf(&sb, "\n| %s | `%s` | %s |", strings.ToUpper(string(entry.Type)), entry.Value, ctx)
	}
	return sb.String()
}

func lastUnusedParagraph(paragraphs []string, used ...string) string {
	isUsed := func(p string) bool {
		for _, u := range used {
			if p == u {
				return true
			}
		}
		return false
	}
	for i := len(paragraphs) - 1; i >= 0; i-- {
		if !isUsed(paragraphs[i]) {
			return paragraphs[i]
		}
	}
	return ""
}

// Generate builds a structured intelligence report from a research bundle.
// Content IOCs are re-extracted from the narrative and merged with the
// bundle's own, deduplicated by (type, value).
func Generate(bundle model.ResearchBundle, reportType string, tlp model.TLPLevel) (*model.Report, error) {
	if bundle.Topic == "" {
		return nil, model.Validationf("bundle topic is required")
	}
	if reportType == "" {
		reportType = "full"
	}
	if tlp == "" {
		tlp = model.TLPGreen
	}
	if !tlp.Valid() {
		return nil, model.Validationf("unknown TLP level: %s", tlp)
	}

	contentIOCs := ioc.Extract(bundle.SynthesizedContent)
	allIOCs := ioc.Merge(bundle.ExtractedIOCs, contentIOCs)

	techniques := bundle.SuggestedTechniques
	if techniques == nil {
		techniques = []model.AttackTechnique{}
	}
	sources := bundle.Sources
	if sources == nil {
		sources = []model.ReportSource{}
	}

	assessments := []model.ConfidenceAssessment{
		assessConfidence(len(sources), fmt.Sprintf("Overall assessment for %s", bundle.Topic)),
	}
	if len(sources) > 0 {
		n := len(sources)
		if n > 3 {
			n = 3
		}
		assessments = append(assessments, assessConfidence(n, "Attribution and threat actor identification"))
	}
	if len(allIOCs) > 0 {
		sourced := 0
		for _, entry := range allIOCs {
			if len(entry.Sources) > 0 {
				sourced++
			}
		}
		if sourced == 0 {
			sourced = 1
		}
		assessments = append(assessments, assessConfidence(sourced, "Indicator of Compromise validity"))
	}

	rpt := &model.Report{
		ID:                    newReportID(bundle.Topic),
		Topic:                 bundle.Topic,
		CreatedAt:             util.NowISO(),
		Tier:                  bundle.Tier,
		TLP:                   tlp,
		BLUF:                  buildBLUF(bundle.Topic, bundle.SynthesizedContent, len(sources)),
		ThreatActor:           extractThreatActor(bundle.Topic, bundle.SynthesizedContent),
		Sections:              buildSections(bundle.Topic, bundle.SynthesizedContent, sources, allIOCs, techniques, reportType),
		IOCs:                  allIOCs,
		AttackMapping:         techniques,
		Sources:               sources,
		Footnotes:             Endnotes(sources),
		Bibliography:          Bibliography(sources),
		ConfidenceAssessments: assessments,
	}

	util.PrintInfof("Generated report %s: %d sections, %d IOCs, %d techniques, %d sources",
		rpt.ID, len(rpt.Sections), len(rpt.IOCs), len(rpt.AttackMapping), len(rpt.Sources))

	return rpt, nil
}
