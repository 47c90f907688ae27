package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "email",
			in:   "Contact marie.dupont@example.com for details",
			want: "Contact [email] for details",
		},
		{
			name: "national phone number",
			in:   "Call 06 12 34 56 78 tomorrow",
			want: "Call [phone] tomorrow",
		},
		{
			name: "international phone number",
			in:   "Reach me at +33 6 12 34 56 78",
			want: "Reach me at [phone]",
		},
		{
			name: "social security number",
			in:   "NIR: 1 85 03 75 123 456 78",
			want: "NIR: [ssn]",
		},
		{
			name: "iban",
			in:   "Wire to FR76 3000 6000 0112 3456 7890 189",
			want: "Wire to [iban]",
		},
		{
			name: "card number with spaces",
			in:   "Card 4111 1111 1111 1111 expires soon",
			want: "Card [card] expires soon",
		},
		{
			name: "card number with dashes",
			in:   "4111-1111-1111-1111",
			want: "[card]",
		},
		{
			name: "multiple kinds in one text",
			in:   "Email jean@test.fr or call 06 98 76 54 32",
			want: "Email [email] or call [phone]",
		},
		{
			name: "clean text unchanged",
			in:   "Sprint review moved to Thursday",
			want: "Sprint review moved to Thursday",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.in))
		})
	}
}

func TestRedactor_Idempotent(t *testing.T) {
	r := NewRedactor()

	inputs := []string{
		"Contact marie.dupont@example.com or 06 12 34 56 78",
		"Card 4111 1111 1111 1111 and IBAN FR76 3000 6000 0112 3456 7890 189",
		"Already redacted: [email] [phone] [ssn] [iban] [card]",
	}

	for _, in := range inputs {
		once := r.Redact(in)
		twice := r.Redact(once)
		assert.Equal(t, once, twice)
	}
}

func TestRedactor_AddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`EMP-\d{6}`, "[employee]"))
	assert.Equal(t, "ID [employee] onboarded", r.Redact("ID EMP-123456 onboarded"))

	assert.Error(t, r.AddPattern(`[`, "[bad]"))
}

func TestEngine_Redact_RespectsConfig(t *testing.T) {
	e := NewEngine()
	text := "Mail marie@example.com"

	t.Run("enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RedactPII = true
		assert.Equal(t, "Mail [email]", e.Redact(text, cfg))
	})

	t.Run("disabled is a no-op", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RedactPII = false
		assert.Equal(t, text, e.Redact(text, cfg))
	})
}
