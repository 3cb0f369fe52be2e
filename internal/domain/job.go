package domain

// JobType enumerates supported generation job categories. Each type has its
// own upstream response schema; the status normalizer dispatches on this tag.
type JobType string

const (
	JobTypeImage JobType = "image"
	JobTypeCover JobType = "cover"
	JobTypeMusic JobType = "music"
	JobTypeVideo JobType = "video"
)

// KnownJobType reports whether t is part of the fixed enumeration.
func KnownJobType(t JobType) bool {
	switch t {
	case JobTypeImage, JobTypeCover, JobTypeMusic, JobTypeVideo:
		return true
	}
	return false
}

// JobStatus enumerates normalized job lifecycle states. Completed and failed
// are terminal; processing is the conservative default for ambiguous payloads.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// NormalizedResult is the uniform output of status normalization. Exactly one
// of MediaURL/MediaURLs is populated on completed; ErrorMessage on failed.
// Progress is best-effort and may be empty.
type NormalizedResult struct {
	Status       JobStatus `json:"status"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	MediaURLs    []string  `json:"mediaUrls,omitempty"`
	Progress     string    `json:"progress,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}
