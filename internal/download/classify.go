package download

import "strings"

// classifyStderr maps the acquisition tool's diagnostic text onto a coarse
// user-facing reason. Matching is deliberately loose; the tool's phrasing
// shifts between releases.
func classifyStderr(stderr string) *Failure {
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "sign in to confirm your age"),
		strings.Contains(lower, "age-restricted"),
		strings.Contains(lower, "age restricted"):
		return newFailure(ReasonAgeRestricted, "This resource requires age verification and cannot be downloaded.")

	case strings.Contains(lower, "http error 403"),
		strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "access denied"):
		return newFailure(ReasonForbidden, "Access to this resource is forbidden or restricted.")

	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "this video is not available"),
		strings.Contains(lower, "has been removed"):
		return newFailure(ReasonUnavailable, "This resource is unavailable or private.")

	default:
		return newFailure(ReasonFailed, "The download failed. Please try again later.")
	}
}
