package genextract

import (
	"fmt"
	"strings"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/entity"
)

// DefaultMaxPromptChars caps the document text embedded in a prompt.
// Head+trailer truncation is applied above this size.
const DefaultMaxPromptChars = 24000

// trailerMarkers name the trailing section that must survive
// truncation: party requisites and signatures carry names, tax IDs and
// bank details that the head of a long contract never repeats.
var trailerMarkers = []string{
	"requisites",
	"details of the parties",
	"addresses and details",
	"signatures",
	"signed by",
}

// BuildSystemPrompt is the fixed system message for structured
// contract extraction.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a contract analysis engine. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Currency must be a 3-letter ISO 4217 code.",
		"Amounts are plain numbers without thousands separators.",
		"The user message includes pre-extracted reference values (dates, amounts, tax identifiers, names) found by deterministic rules. Treat them as authoritative: never contradict a reference value, and prefer it over your own reading when they conflict.",
		"Never output null. If a field is not present in the document, omit it.",
		"Do not invent parties, amounts or dates that are not in the document.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt embeds the (possibly truncated) document text and
// the seed atoms as reference values.
func BuildUserPrompt(text string, seed map[constants.EntityType][]entity.ExtractedAtom, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	var b strings.Builder
	b.WriteString("Reference values (pre-extracted, authoritative):\n")
	n := 0
	for _, t := range constants.EntityTypes {
		for _, a := range seed[t] {
			fmt.Fprintf(&b, "- %s: %s\n", t, a.NormalizedValue)
			n++
		}
	}
	if n == 0 {
		b.WriteString("- none\n")
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(TruncateKeepTrailer(text, maxChars))
	return b.String()
}

// BuildSectionPrompt asks for a section-by-section review of the
// document.
func BuildSectionPrompt(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	var b strings.Builder
	b.WriteString("Split the contract below into its logical sections (subject, term, price and payment, liability, termination, other). ")
	b.WriteString("For each section report warnings about unusual or one-sided conditions and recommendations with a priority (low, medium, high, critical). ")
	b.WriteString("Skip sections with nothing to report.\n\nDocument text:\n")
	b.WriteString(TruncateKeepTrailer(text, maxChars))
	return b.String()
}

// TruncateKeepTrailer caps text at maxChars. Instead of cutting the
// tail it keeps the head plus the trailing section starting at the
// last trailer marker, so requisites and signatures survive. When no
// marker is found within the budgeted tail, it falls back to keeping
// the last tenth of the budget from the document's end.
func TruncateKeepTrailer(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	trailerBudget := maxChars / 4
	tailStart := len(text) - trailerBudget
	trailer := text[tailStart:]

	markerAt := -1
	lower := strings.ToLower(trailer)
	for _, m := range trailerMarkers {
		if i := strings.LastIndex(lower, m); i > markerAt {
			markerAt = i
		}
	}
	if markerAt >= 0 {
		// Start the kept trailer at the beginning of the marker's line.
		if nl := strings.LastIndexByte(trailer[:markerAt], '\n'); nl >= 0 {
			markerAt = nl + 1
		} else {
			markerAt = 0
		}
		trailer = trailer[markerAt:]
	} else {
		keep := maxChars / 10
		trailer = text[len(text)-keep:]
	}

	const gap = "\n[... truncated ...]\n"
	headBudget := maxChars - len(trailer) - len(gap)
	if headBudget < 0 {
		headBudget = 0
	}
	head := text[:headBudget]
	// Cut the head on a line boundary when one is near.
	if nl := strings.LastIndexByte(head, '\n'); nl > headBudget-200 && nl > 0 {
		head = head[:nl]
	}
	return head + gap + trailer
}
