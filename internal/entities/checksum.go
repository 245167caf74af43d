package entities

// Weighted mod-11 checksum rules for fixed-length numeric tax
// identifiers. The weights are the registry's published algorithm;
// they are not tunable.

var (
	weights10 = []int{2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights11 = []int{7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights12 = []int{3, 7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
)

func checkDigit(digits []int, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digits[i] * w
	}
	return sum % 11 % 10
}

func toDigits(s string) ([]int, bool) {
	out := make([]int, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return nil, false
		}
		out[i] = int(c - '0')
	}
	return out, true
}

// ValidTaxID10 validates a 10-digit organization tax identifier.
func ValidTaxID10(s string) bool {
	if len(s) != 10 {
		return false
	}
	d, ok := toDigits(s)
	if !ok {
		return false
	}
	return checkDigit(d, weights10) == d[9]
}

// ValidTaxID12 validates a 12-digit personal tax identifier, which
// carries two check digits.
func ValidTaxID12(s string) bool {
	if len(s) != 12 {
		return false
	}
	d, ok := toDigits(s)
	if !ok {
		return false
	}
	return checkDigit(d, weights11) == d[10] && checkDigit(d, weights12) == d[11]
}
