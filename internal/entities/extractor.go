// Package entities extracts structured atoms (dates, amounts,
// identifiers, organization and person names) from normalized text
// with ordered patterns and checksum/format validation. Extraction is
// pure and deterministic: identical input yields identical atoms in
// identical order.
package entities

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glassboxhq/glassbox/constants"
	"github.com/glassboxhq/glassbox/internal/entity"
)

const snippetRadius = 40

// Extract runs every entity type's pattern list over text. Matches
// failing their type-specific validation rule are dropped, not
// down-weighted.
func Extract(text string) map[constants.EntityType][]entity.ExtractedAtom {
	out := map[constants.EntityType][]entity.ExtractedAtom{
		constants.EntityDate:         extractDates(text),
		constants.EntityAmount:       extractAmounts(text),
		constants.EntityIdentifier:   extractIdentifiers(text),
		constants.EntityOrganization: extractNames(text, constants.EntityOrganization, organizationPatterns, 0.8),
		constants.EntityPerson:       extractNames(text, constants.EntityPerson, personPatterns, 0.75),
	}
	for _, atoms := range out {
		sortAtoms(atoms)
	}
	return out
}

// Flatten returns all atoms in the fixed type order, for audit
// payloads.
func Flatten(m map[constants.EntityType][]entity.ExtractedAtom) []entity.ExtractedAtom {
	var all []entity.ExtractedAtom
	for _, t := range constants.EntityTypes {
		all = append(all, m[t]...)
	}
	return all
}

func sortAtoms(atoms []entity.ExtractedAtom) {
	sort.SliceStable(atoms, func(i, j int) bool {
		if atoms[i].SourceOffset != atoms[j].SourceOffset {
			return atoms[i].SourceOffset < atoms[j].SourceOffset
		}
		return atoms[i].RawValue < atoms[j].RawValue
	})
}

func snippet(text string, start, end int) string {
	lo := start - snippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + snippetRadius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

func atom(t constants.EntityType, text string, start, end int, normalized string, conf float32) entity.ExtractedAtom {
	return entity.ExtractedAtom{
		Type:            t,
		RawValue:        text[start:end],
		NormalizedValue: normalized,
		Confidence:      conf,
		SourceOffset:    start,
		ContextSnippet:  snippet(text, start, end),
	}
}

func extractDates(text string) []entity.ExtractedAtom {
	var atoms []entity.ExtractedAtom
	seen := map[int]bool{} // by offset: earlier patterns win
	for pi, re := range datePatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if seen[m[0]] {
				continue
			}
			normalized, ok := normalizeDate(pi, text, m)
			if !ok {
				continue
			}
			seen[m[0]] = true
			atoms = append(atoms, atom(constants.EntityDate, text, m[0], m[1], normalized, 0.9))
		}
	}
	return atoms
}

// normalizeDate maps a pattern match to YYYY-MM-DD and validates it
// as a real calendar date.
func normalizeDate(patternIdx int, text string, m []int) (string, bool) {
	group := func(i int) string { return text[m[2*i] : m[2*i+1]] }
	var y, mo, d int
	switch patternIdx {
	case 0: // YYYY-MM-DD
		y, _ = strconv.Atoi(group(1))
		mo, _ = strconv.Atoi(group(2))
		d, _ = strconv.Atoi(group(3))
	case 1: // DD.MM.YYYY
		d, _ = strconv.Atoi(group(1))
		mo, _ = strconv.Atoi(group(2))
		y, _ = strconv.Atoi(group(3))
	case 2: // Month DD, YYYY
		mo = monthNumbers[group(1)]
		d, _ = strconv.Atoi(group(2))
		y, _ = strconv.Atoi(group(3))
	case 3: // DD Month YYYY
		d, _ = strconv.Atoi(group(1))
		mo = monthNumbers[group(2)]
		y, _ = strconv.Atoi(group(3))
	}
	candidate := fmt.Sprintf("%04d-%02d-%02d", y, mo, d)
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return "", false
	}
	if y < 1900 || y > 2200 {
		return "", false
	}
	return candidate, true
}

func extractAmounts(text string) []entity.ExtractedAtom {
	var atoms []entity.ExtractedAtom
	for _, m := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		currency := ""
		if m[2] >= 0 {
			currency = currencyCodes[text[m[2]:m[3]]]
		}
		if currency == "" && m[6] >= 0 {
			currency = currencyCodes[text[m[6]:m[7]]]
		}
		if currency == "" {
			continue // no currency marker: not an amount
		}
		raw := text[m[4]:m[5]]
		value := strings.NewReplacer(",", "", " ", "").Replace(raw)
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			continue
		}
		atoms = append(atoms, atom(constants.EntityAmount, text, m[0], m[1],
			fmt.Sprintf("%.2f %s", f, currency), 0.85))
	}
	return atoms
}

func extractIdentifiers(text string) []entity.ExtractedAtom {
	var atoms []entity.ExtractedAtom
	for _, m := range identifierPattern.FindAllStringIndex(text, -1) {
		candidate := text[m[0]:m[1]]
		valid := false
		switch len(candidate) {
		case 10:
			valid = ValidTaxID10(candidate)
		case 12:
			valid = ValidTaxID12(candidate)
		}
		if !valid {
			continue // checksum failure drops the match entirely
		}
		atoms = append(atoms, atom(constants.EntityIdentifier, text, m[0], m[1], candidate, 0.95))
	}
	return atoms
}

func extractNames(text string, t constants.EntityType, patterns []*regexp.Regexp, conf float32) []entity.ExtractedAtom {
	var atoms []entity.ExtractedAtom
	seen := map[string]bool{} // by normalized value: dedupe repeats
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			name := cleanupName(text[m[2]:m[3]])
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			atoms = append(atoms, atom(t, text, m[2], m[3], name, conf))
		}
	}
	return atoms
}

// cleanupName strips surrounding quote characters and edge stopwords
// from a raw name match.
func cleanupName(raw string) string {
	s := strings.Trim(raw, ` "'«»”“`)
	words := strings.Fields(s)
	for len(words) > 0 && nameStopwords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	for len(words) > 0 && nameStopwords[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " ")
}
