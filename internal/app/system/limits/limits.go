// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON endpoints.
const (
	// MaxFeedbackBodySize bounds a reviewer's feedback submission.
	MaxFeedbackBodySize = 64 << 10 // 64 KB

	// MaxCommitteeBodySize bounds committee create and cancel requests.
	MaxCommitteeBodySize = 256 << 10 // 256 KB
)
