package policy

// Quotas holds per-workspace usage limits. A zero limit means the
// quota is not enforced.
type Quotas struct {
	LLMTokensPerDay      float64 `json:"llm_tokens_per_day" mapstructure:"llm_tokens_per_day"`
	AudioMinutesPerMonth float64 `json:"audio_minutes_per_month" mapstructure:"audio_minutes_per_month"`
	StorageGB            float64 `json:"storage_gb" mapstructure:"storage_gb"`
}

// Config is the per-workspace policy configuration. It is loaded fresh
// for each decision and treated as immutable within one call.
type Config struct {
	AllowedReadSources []string `json:"allowed_read_sources" mapstructure:"allowed_read_sources"`

	// Resource-type tags a write tool may touch, or "*" for all
	AllowedWriteOperations []string `json:"allowed_write_operations" mapstructure:"allowed_write_operations"`

	ExternalCommunicationRequiresConfirmation bool `json:"external_communication_requires_confirmation" mapstructure:"external_communication_requires_confirmation"`

	AllowedFilePaths []string `json:"allowed_file_paths" mapstructure:"allowed_file_paths"`
	BlockedFilePaths []string `json:"blocked_file_paths" mapstructure:"blocked_file_paths"`

	AllowedDomains []string `json:"allowed_domains" mapstructure:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains" mapstructure:"blocked_domains"`

	Quotas Quotas `json:"quotas" mapstructure:"quotas"`

	RedactPII bool `json:"redact_pii" mapstructure:"redact_pii"`
}

// DefaultConfig returns the policy applied to a workspace with no
// stored configuration: all write operations allowed, external
// communication gated behind confirmation, PII redaction on.
func DefaultConfig() Config {
	return Config{
		AllowedWriteOperations: []string{"*"},
		ExternalCommunicationRequiresConfirmation: true,
		Quotas: Quotas{
			LLMTokensPerDay:      1_000_000,
			AudioMinutesPerMonth: 600,
			StorageGB:            10,
		},
		RedactPII: true,
	}
}

// AllowsWriteOperation checks a resource-type tag against the
// write allow-list
func (c *Config) AllowsWriteOperation(operation string) bool {
	for _, allowed := range c.AllowedWriteOperations {
		if allowed == "*" || allowed == operation {
			return true
		}
	}
	return false
}
