package media

import (
	"errors"
	"testing"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		video      string
		collection string
	}{
		{"bare video id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"bare collection id", "PLabcdefghij1234567890", "", "PLabcdefghij1234567890"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"watch url with list", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLxyz", "dQw4w9WgXcQ", "PLxyz"},
		{"playlist url", "https://www.youtube.com/playlist?list=PLxyz", "", "PLxyz"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"legacy v path", "https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", ""},
		{"whitespace trimmed", "  dQw4w9WgXcQ  ", "dQw4w9WgXcQ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRef(tt.raw)
			if err != nil {
				t.Fatalf("ParseRef(%q) error = %v", tt.raw, err)
			}
			if ref.VideoID != tt.video {
				t.Errorf("VideoID = %q, want %q", ref.VideoID, tt.video)
			}
			if ref.CollectionID != tt.collection {
				t.Errorf("CollectionID = %q, want %q", ref.CollectionID, tt.collection)
			}
		})
	}
}

func TestParseRef_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"https://www.youtube.com/watch",
		"https://example.com/page.html",
	} {
		if _, err := ParseRef(raw); !errors.Is(err, ErrBadRef) {
			t.Errorf("ParseRef(%q) error = %v, want ErrBadRef", raw, err)
		}
	}
}

func TestParseRef_ShortIDRejected(t *testing.T) {
	// 10 characters is not a video id; without separators it falls back to
	// a collection reference rather than failing.
	ref, err := ParseRef("dQw4w9WgXc")
	if err != nil {
		t.Fatalf("ParseRef() error = %v", err)
	}
	if ref.VideoID != "" || ref.CollectionID != "dQw4w9WgXc" {
		t.Errorf("ParseRef() = %+v, want collection fallback", ref)
	}
}

func TestRef_IsCollection(t *testing.T) {
	if (Ref{VideoID: "dQw4w9WgXcQ"}).IsCollection() {
		t.Error("video-only ref should not be a collection")
	}
	if !(Ref{CollectionID: "PLxyz"}).IsCollection() {
		t.Error("collection ref should report IsCollection")
	}
}

func TestWatchURL(t *testing.T) {
	got := WatchURL("dQw4w9WgXcQ")
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if got != want {
		t.Errorf("WatchURL() = %q, want %q", got, want)
	}
}

func TestCollectionURL(t *testing.T) {
	got := CollectionURL("PLxyz")
	want := "https://www.youtube.com/playlist?list=PLxyz"
	if got != want {
		t.Errorf("CollectionURL() = %q, want %q", got, want)
	}
}
