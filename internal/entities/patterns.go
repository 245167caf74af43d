package entities

import "regexp"

// Ordered pattern lists per entity type. Order matters: earlier
// patterns win overlapping matches.

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),                          // ISO
	regexp.MustCompile(`\b(\d{1,2})[./](\d{1,2})[./](\d{4})\b`),                // DD.MM.YYYY
	regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s+(\d{4})\b`),
	regexp.MustCompile(`\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December),?\s+(\d{4})\b`),
}

var monthNumbers = map[string]int{
	"January": 1, "February": 2, "March": 3, "April": 4,
	"May": 5, "June": 6, "July": 7, "August": 8,
	"September": 9, "October": 10, "November": 11, "December": 12,
}

// Amounts need an explicit currency marker on either side; bare
// numbers are too noisy to extract.
var amountPattern = regexp.MustCompile(
	`(?:(\$|€|£|USD|EUR|GBP|RUB)\s?)?(\d{1,3}(?:[ ,]\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)(?:\s?(\$|€|£|USD|EUR|GBP|RUB|dollars|euros))?`)

var currencyCodes = map[string]string{
	"$": "USD", "USD": "USD", "dollars": "USD",
	"€": "EUR", "EUR": "EUR", "euros": "EUR",
	"£": "GBP", "GBP": "GBP",
	"RUB": "RUB",
}

// Candidate identifiers: fixed-length digit runs, validated by
// checksum before an atom is produced.
var identifierPattern = regexp.MustCompile(`\b(\d{10}|\d{12})\b`)

// Organizations: capitalized name attached to a legal-form token, or
// a quoted name following one.
var organizationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b((?:[A-Z][\w&.'-]*\s){0,5}?[A-Z][\w&.'-]*(?:,)?\s(?:LLC|Ltd\.?|Inc\.?|LLP|GmbH|PLC|JSC|Corp\.?|Co\.))`),
	regexp.MustCompile(`\b(?:LLC|Ltd|Inc|company|Company)\s+["«']([^"»'\n]{2,60})["»']`),
}

// Persons: honorific-led names, or names introduced by a
// representation phrase.
var personPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+([A-Z][a-z]+(?:\s[A-Z]\.)?(?:\s[A-Z][a-z]+)+)`),
	regexp.MustCompile(`(?:represented by|signed by|in the person of)\s+(?:its\s+\w+\s+)?([A-Z][a-z]+(?:\s[A-Z]\.)?(?:\s[A-Z][a-z]+)+)`),
}

// nameStopwords are trimmed from the edges of organization and person
// matches during cleanup.
var nameStopwords = map[string]bool{
	"the": true, "and": true, "of": true, "by": true, "with": true,
	"between": true, "a": true, "an": true, "for": true,
}
