package domain

import "time"

// AlertCategory enumerates operator notification categories.
type AlertCategory string

const (
	AlertNoUsableCredential AlertCategory = "no_usable_credential"
	AlertProbeFailures      AlertCategory = "probe_failures"
)

// Alert is a deduplicated operator-facing notification. At most one unread
// alert per category may exist within the dedup window.
type Alert struct {
	ID        string        `json:"id"`
	Category  AlertCategory `json:"category"`
	Message   string        `json:"message"`
	Read      bool          `json:"read"`
	CreatedAt time.Time     `json:"createdAt"`
}
