package media

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Ref is a resolved resource reference: a single item, a collection, or a
// URL that names both (a video opened from within a playlist).
type Ref struct {
	VideoID      string
	CollectionID string
}

// IsCollection reports whether the reference names a collection.
func (r Ref) IsCollection() bool { return r.CollectionID != "" }

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ErrBadRef is returned for references that name neither a video nor a
// collection.
var ErrBadRef = fmt.Errorf("unrecognized resource reference")

// ParseRef resolves a raw reference string: a bare 11-character video id, a
// bare collection id, or a locator URL carrying v= and/or list= parameters.
func ParseRef(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, ErrBadRef
	}

	if videoIDPattern.MatchString(raw) {
		return Ref{VideoID: raw}, nil
	}

	if !strings.Contains(raw, "/") && !strings.Contains(raw, ".") {
		// Bare non-video token; treat as a collection id (PL..., UU..., etc).
		return Ref{CollectionID: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrBadRef, raw)
	}

	var ref Ref
	q := u.Query()
	if v := q.Get("v"); videoIDPattern.MatchString(v) {
		ref.VideoID = v
	}
	if list := q.Get("list"); list != "" {
		ref.CollectionID = list
	}

	// Short-link form: the id is the path itself.
	if ref.VideoID == "" && strings.Contains(u.Host, "youtu.be") {
		if id := strings.Trim(u.Path, "/"); videoIDPattern.MatchString(id) {
			ref.VideoID = id
		}
	}
	// Embedded and shorts forms carry the id as the last path segment.
	if ref.VideoID == "" {
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id := strings.Trim(rest, "/"); videoIDPattern.MatchString(id) {
					ref.VideoID = id
				}
				break
			}
		}
	}

	if ref.VideoID == "" && ref.CollectionID == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrBadRef, raw)
	}
	return ref, nil
}

// WatchURL builds the canonical locator for a single video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// CollectionURL builds the canonical locator for a collection id.
func CollectionURL(collectionID string) string {
	return "https://www.youtube.com/playlist?list=" + collectionID
}
