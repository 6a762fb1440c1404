package domain

import "strings"

// ProviderKind tags the backend variant a configuration targets.
type ProviderKind string

const (
	ProviderRelational ProviderKind = "relational"
	ProviderHosted     ProviderKind = "hosted"
)

// RelationalConfig connects the pgvector-backed store.
type RelationalConfig struct {
	DSN string `json:"dsn"`
}

// HostedConfig connects a managed vector-store API.
type HostedConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	IndexName string `json:"index_name"`
}

// ProviderConfig is a tagged union over the provider kinds. Exactly one
// of the kind-specific sections must be populated for the tagged kind.
type ProviderConfig struct {
	Kind       ProviderKind      `json:"kind"`
	Dimensions int               `json:"dimensions"`
	Relational *RelationalConfig `json:"relational,omitempty"`
	Hosted     *HostedConfig     `json:"hosted,omitempty"`
}

// Validate checks configuration shape per kind. A dimensionality
// mismatch against the embedding model is reported by the provider's
// ValidateConfiguration as a warning, not here.
func (c ProviderConfig) Validate() ValidationReport {
	report := ValidationReport{IsValid: true}

	switch c.Kind {
	case ProviderRelational:
		if c.Relational == nil || strings.TrimSpace(c.Relational.DSN) == "" {
			report.IsValid = false
			report.Errors = append(report.Errors, "relational provider requires a connection DSN")
		}
	case ProviderHosted:
		if c.Hosted == nil || strings.TrimSpace(c.Hosted.BaseURL) == "" {
			report.IsValid = false
			report.Errors = append(report.Errors, "hosted provider requires a base URL")
		}
		if c.Hosted != nil && strings.TrimSpace(c.Hosted.IndexName) == "" {
			report.IsValid = false
			report.Errors = append(report.Errors, "hosted provider requires an index name")
		}
	default:
		report.IsValid = false
		report.Errors = append(report.Errors, "unknown provider kind: "+string(c.Kind))
	}

	if c.Dimensions <= 0 {
		report.Warnings = append(report.Warnings, "embedding dimensions not set; dimension check disabled")
	}

	return report
}
