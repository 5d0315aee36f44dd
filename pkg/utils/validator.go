package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,127}$`)

// ValidateIdentifier checks an entity type or entity ID taken from user input
func ValidateIdentifier(kind, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if !identifierRegex.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", kind, value)
	}
	return nil
}

// ToSnakeCase converts names like "PurchaseOrder" or "purchase-order" to
// "purchase_order"
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))

	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}
