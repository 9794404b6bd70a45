package usecase

import (
	"regexp"
	"strings"

	"github.com/devionx/uidshield/internal/core/domain"
)

// patternRule pairs a matching rule with its tag. Rules are evaluated in
// declaration order; a lower-priority match overlapping an already claimed
// span is discarded, and the loose rule runs only when the strict rules found
// nothing at all, so long digit runs (phone numbers, account numbers) never
// reach it first.
type patternRule struct {
	kind domain.PatternKind
	re   *regexp.Regexp
}

var strictRules = []patternRule{
	{domain.PatternContiguous, regexp.MustCompile(`\b\d{12}\b`)},
	{domain.PatternGrouped444, regexp.MustCompile(`\b\d{4}\s+\d{4}\s+\d{4}\b`)},
}

var looseRule = patternRule{
	domain.PatternLooseSpacing,
	regexp.MustCompile(`\b\d{4}\s*\d{4}\s*\d{4}\b`),
}

// IdentifierExtractor locates twelve-digit identifiers in OCR observations.
// An empty result means "not found" and is never an error.
type IdentifierExtractor struct {
	minConfidence float64
}

func NewIdentifierExtractor(minConfidence float64) *IdentifierExtractor {
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	return &IdentifierExtractor{minConfidence: minConfidence}
}

// fragment remembers where one observation's cleaned text landed in the
// joined string so a match span can be traced back to its boxes.
type fragment struct {
	start, end int
	box        domain.Box
	confidence float64
}

func (e *IdentifierExtractor) Extract(observations []domain.Observation) []domain.Detection {
	joined, fragments := e.join(observations)
	if joined == "" {
		return nil
	}

	var detections []domain.Detection
	var claimed []span
	for _, rule := range strictRules {
		detections, claimed = applyRule(rule, joined, fragments, detections, claimed)
	}
	if len(detections) == 0 {
		detections, _ = applyRule(looseRule, joined, fragments, detections, claimed)
	}
	return dedupeByValue(detections)
}

// join concatenates observation texts with single spaces, stripping
// everything but digits and whitespace the way the card layout allows.
func (e *IdentifierExtractor) join(observations []domain.Observation) (string, []fragment) {
	var sb strings.Builder
	fragments := make([]fragment, 0, len(observations))

	for _, obs := range observations {
		if obs.Confidence < e.minConfidence {
			continue
		}
		cleaned := cleanText(obs.Text)
		if strings.TrimSpace(cleaned) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		start := sb.Len()
		sb.WriteString(cleaned)
		fragments = append(fragments, fragment{
			start:      start,
			end:        sb.Len(),
			box:        obs.Box,
			confidence: obs.Confidence,
		})
	}
	return sb.String(), fragments
}

func cleanText(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return ' '
	}, text)
}

type span struct{ start, end int }

func (s span) overlaps(other span) bool {
	return s.start < other.end && other.start < s.end
}

func applyRule(
	rule patternRule,
	joined string,
	fragments []fragment,
	detections []domain.Detection,
	claimed []span,
) ([]domain.Detection, []span) {
	for _, loc := range rule.re.FindAllStringIndex(joined, -1) {
		match := span{start: loc[0], end: loc[1]}

		taken := false
		for _, c := range claimed {
			if match.overlaps(c) {
				taken = true
				break
			}
		}
		if taken {
			continue
		}

		value := digitsOnly(joined[match.start:match.end])
		if len(value) != domain.IdentifierDigits {
			continue
		}

		region, confidence := combineFragments(fragments, match)
		detections = append(detections, domain.Detection{
			Value:      value,
			Region:     region,
			Confidence: confidence,
			Pattern:    rule.kind,
		})
		claimed = append(claimed, match)
	}
	return detections, claimed
}

// combineFragments unions every contributing observation's box and combines
// confidence pessimistically: one shaky fragment invalidates the rest.
func combineFragments(fragments []fragment, match span) (domain.Box, float64) {
	var region domain.Box
	confidence := 1.0
	contributed := false

	for _, f := range fragments {
		if !match.overlaps(span{start: f.start, end: f.end}) {
			continue
		}
		region = region.Union(f.box)
		if f.confidence < confidence {
			confidence = f.confidence
		}
		contributed = true
	}
	if !contributed {
		return domain.Box{}, 0
	}
	return region, confidence
}

func boxesOverlap(a, b domain.Box) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// dedupeByValue keeps the first occurrence of each identifier; rules ran in
// priority order, so the survivor is the highest-priority find.
func dedupeByValue(detections []domain.Detection) []domain.Detection {
	if len(detections) < 2 {
		return detections
	}
	seen := make(map[string]int, len(detections))
	out := detections[:0]
	for _, d := range detections {
		if i, ok := seen[d.Value]; ok {
			// Same value found twice: overlapping regions collapse into
			// their union, distinct occurrences keep the first find.
			if boxesOverlap(out[i].Region, d.Region) {
				out[i].Region = out[i].Region.Union(d.Region)
			}
			continue
		}
		seen[d.Value] = len(out)
		out = append(out, d)
	}
	return out
}
