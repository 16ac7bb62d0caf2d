package domain

// Severity grades an insight.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight is one detected rendering anti-pattern. Produced fresh on every
// analysis run; immutable afterwards.
type Insight struct {
	Type        string             `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Suggestions []string           `json:"suggestions"`
	Severity    Severity           `json:"severity"`
	Metadata    map[string]float64 `json:"metadata,omitempty"`
}
