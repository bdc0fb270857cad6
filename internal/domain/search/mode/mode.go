package mode

// Mode is the retrieval strategy a search actually ran with.
type Mode string

// Search mode constants.
const (
	// Hybrid fuses semantic (vector) and lexical (full-text) rankings.
	Hybrid Mode = "hybrid"
	// Lexical is full-text only. Used when the embedding provider is unavailable
	// and the caller allows degradation.
	Lexical Mode = "lexical"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Lexical
}

// Degraded reports whether m is a fallback mode.
func (m Mode) Degraded() bool { return m == Lexical }
