// Package media defines the data model shared by the acquisition pipeline:
// resource metadata, format variants, caption tracks, and collection members,
// plus parsing of the acquisition tool's metadata dump.
package media

import "strings"

// PlaceholderPrefix marks synthesized format ids. A placeholder stands in for
// a standard quality tier the upstream tool did not report; it is shown in
// catalogs but must never be downloaded.
const PlaceholderPrefix = "placeholder-"

// ResourceInfo describes one downloadable resource or collection.
// Immutable once cached.
type ResourceInfo struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Thumbnail    string             `json:"thumbnail,omitempty"`
	Duration     int                `json:"duration"`
	Channel      string             `json:"channel,omitempty"`
	Formats      []FormatVariant    `json:"formats"`
	Captions     []CaptionTrack     `json:"captions,omitempty"`
	IsCollection bool               `json:"isCollection,omitempty"`
	Members      []CollectionMember `json:"members,omitempty"`
}

// FormatVariant is one concrete encoding of a resource in the normalized
// catalog. Within one ResourceInfo the tuple (HasVideo, HasAudio,
// QualityLabel, Ext) is unique.
type FormatVariant struct {
	ID            string `json:"formatId"`
	Ext           string `json:"ext"`
	Note          string `json:"note,omitempty"`
	QualityLabel  string `json:"qualityLabel"`
	HasAudio      bool   `json:"hasAudio"`
	HasVideo      bool   `json:"hasVideo"`
	Size          int64  `json:"size"`
	AudioChannels int    `json:"audioChannels"`
	Height        int    `json:"height,omitempty"`
}

// IsPlaceholder reports whether the variant is a synthesized stand-in that
// cannot be downloaded.
func (f FormatVariant) IsPlaceholder() bool {
	return strings.HasPrefix(f.ID, PlaceholderPrefix)
}

// CaptionTrack is one subtitle track offered by the upstream resource.
type CaptionTrack struct {
	Language string `json:"language"`
	Name     string `json:"name"`
}

// CollectionMember is one entry of a collection, in upstream enumeration
// order. Position is zero-based.
type CollectionMember struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Position  int    `json:"position"`
}

// RawFormat is one encoding variant exactly as reported by the acquisition
// tool's metadata dump, before normalization. A codec value of "none" (or
// empty) means the stream is absent.
type RawFormat struct {
	ID            string
	Ext           string
	Note          string
	VideoCodec    string
	AudioCodec    string
	Height        int
	AudioBitrate  float64 // kbps
	AudioChannels int
	Size          int64
}

// HasVideo reports whether the raw variant carries a video stream.
func (r RawFormat) HasVideo() bool {
	return r.VideoCodec != "" && r.VideoCodec != "none"
}

// HasAudio reports whether the raw variant carries an audio stream.
func (r RawFormat) HasAudio() bool {
	return r.AudioCodec != "" && r.AudioCodec != "none"
}
