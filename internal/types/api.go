package types

// Response status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response is the envelope for every control API reply.
type Response struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	StartTime  int64       `json:"startTimestamp"`
	EndTime    int64       `json:"endTimestamp"`
	Version    string      `json:"version"`
	Preference *Preference `json:"preference,omitempty"`
	Tabs       []TabStatus `json:"tabs,omitempty"`
}

// Preference is the body of the redirect preference endpoints.
type Preference struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// PreferenceUpdate is the PUT body for the redirect preference.
type PreferenceUpdate struct {
	Enabled *bool `json:"enabled"`
}

// TabStatus is a point-in-time view of one watched tab.
type TabStatus struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	VideoID     string `json:"videoId,omitempty"`
	Processed   bool   `json:"processed"`
	Runs        int64  `json:"runs"`
	Failures    int64  `json:"failures"`
	LastOutcome string `json:"lastOutcome,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}
