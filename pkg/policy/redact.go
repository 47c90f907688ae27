package policy

import "regexp"

// redactionRule pairs a PII pattern with its replacement token.
// Tokens contain no digits or @ so re-running the redactor over
// already-redacted text changes nothing.
type redactionRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor scrubs personally identifiable substrings from text.
// Rules apply in a fixed order; the result is idempotent.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor creates a redactor with the default PII patterns
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			// Email addresses
			{
				pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
				replacement: "[email]",
			},
			// French phone numbers, national or international form
			{
				pattern:     regexp.MustCompile(`(?:\+33\s?|0)[1-9](?:[\s.-]?\d{2}){4}`),
				replacement: "[phone]",
			},
			// French social security numbers (NIR, 15 digits)
			{
				pattern:     regexp.MustCompile(`\b[12]\s?\d{2}\s?(?:0[1-9]|1[0-2])\s?\d{2}\s?\d{3}\s?\d{3}\s?\d{2}\b`),
				replacement: "[ssn]",
			},
			// IBANs
			{
				pattern:     regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,3})?\b`),
				replacement: "[iban]",
			},
			// Payment card numbers
			{
				pattern:     regexp.MustCompile(`\b\d{4}(?:[\s-]?\d{4}){3}\b`),
				replacement: "[card]",
			},
		},
	}
}

// AddPattern appends a custom redaction rule
func (r *Redactor) AddPattern(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{pattern: re, replacement: replacement})
	return nil
}

// Redact applies all rules in order
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.rules {
		result = rule.pattern.ReplaceAllString(result, rule.replacement)
	}
	return result
}
