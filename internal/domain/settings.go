package domain

// SessionSettings are the recognized feature toggles for an editing session.
// They are passed in at session construction and persisted through the local
// cache store rather than a separate ad hoc mechanism.
type SessionSettings struct {
	PredictiveTypingEnabled bool `json:"predictive_typing_enabled"`
	SummaryEnabled          bool `json:"summary_enabled"`
}

func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		PredictiveTypingEnabled: true,
		SummaryEnabled:          true,
	}
}
