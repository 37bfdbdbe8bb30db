// Package download drives the acquisition tool through an ordered list of
// strategies until one delivers the requested bytes, classifying upstream
// failures into user-facing reasons.
package download

import (
	"errors"
	"fmt"
)

// Request describes one single-item download.
type Request struct {
	ResourceID    string `json:"resourceId"`
	FormatID      string `json:"formatId"`
	TrimStart     *int   `json:"trimStart,omitempty"` // seconds
	TrimEnd       *int   `json:"trimEnd,omitempty"`   // seconds; end > start required
	CaptionLang   string `json:"captionLang,omitempty"`
	CaptionFormat string `json:"captionFormat,omitempty"` // srt, vtt, ass
}

// ReasonCode is a coarse classification of a terminal failure.
type ReasonCode string

const (
	ReasonInvalidInput  ReasonCode = "invalid_input"
	ReasonForbidden     ReasonCode = "access_forbidden"
	ReasonUnavailable   ReasonCode = "resource_unavailable"
	ReasonAgeRestricted ReasonCode = "age_verification_required"
	ReasonToolMissing   ReasonCode = "tool_missing"
	ReasonArchive       ReasonCode = "archive_failed"
	ReasonFailed        ReasonCode = "download_failed"
)

// Failure is a terminal, classified download failure. Message is safe to
// show end users; raw tool diagnostics are logged, never attached here.
type Failure struct {
	Code    ReasonCode
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Retryable reports whether a later strategy could plausibly succeed.
// Access-restriction classes describe the resource itself, not the
// transport, so they short-circuit the remaining strategies.
func (f *Failure) Retryable() bool {
	switch f.Code {
	case ReasonInvalidInput, ReasonForbidden, ReasonUnavailable, ReasonAgeRestricted, ReasonToolMissing, ReasonArchive:
		return false
	default:
		return true
	}
}

// NewFailure builds a classified failure. Exposed for the playlist
// aggregator, which shares the download error taxonomy.
func NewFailure(code ReasonCode, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

func newFailure(code ReasonCode, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// Attempt-local sentinel: the file-buffered strategy produced an empty or
// missing result.
var errEmptyResult = errors.New("download produced no bytes")

func invalidInput(format string, args ...any) *Failure {
	return newFailure(ReasonInvalidInput, fmt.Sprintf(format, args...))
}
