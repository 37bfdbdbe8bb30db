// Package catalog normalizes the acquisition tool's raw encoding variants
// into a stable, deduplicated format catalog with synthesized placeholders
// for missing standard tiers.
package catalog

import (
	"fmt"
	"sort"

	"github.com/vidfetch/vidfetch/internal/media"
)

// Standard quality tiers. Gap-filling guarantees a catalog entry for every
// tier, synthesizing placeholders where upstream reported nothing.
var (
	videoTiers = []int{2160, 1440, 1080, 720, 480, 360, 240, 144}
	audioTiers = []int{320, 256, 192, 128}
)

// Size estimate used for video placeholders: height squared times this
// factor approximates a typical bitrate-for-resolution encode.
const videoSizeFactor = 250

var supportedVideoExts = map[string]bool{"mp4": true, "webm": true, "mkv": true}
var supportedAudioExts = map[string]bool{"m4a": true, "webm": true, "mp3": true, "opus": true}

// VideoLabel maps a pixel height to the nearest standard tier label, with a
// friendly suffix for high-definition tiers.
func VideoLabel(height int) string {
	tier := nearest(height, videoTiers)
	switch tier {
	case 2160:
		return "2160p 4K"
	case 1440:
		return "1440p 2K"
	case 1080:
		return "1080p Full HD"
	case 720:
		return "720p HD"
	default:
		return fmt.Sprintf("%dp", tier)
	}
}

// AudioLabel maps an audio bitrate in kbps to the nearest standard tier
// label.
func AudioLabel(kbps float64) string {
	return fmt.Sprintf("%dkbps", nearest(int(kbps), audioTiers))
}

func nearest(v int, tiers []int) int {
	best := tiers[0]
	for _, t := range tiers {
		if abs(v-t) < abs(v-best) || (abs(v-t) == abs(v-best) && t > best) {
			best = t
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type dedupeKey struct {
	hasVideo, hasAudio bool
	label, ext         string
}

// Normalize turns raw variants from the metadata dump, plus supplementary
// audio-only variants probed separately, into the ordered catalog:
// video-with-audio tiers first (descending quality), then video-only, then
// audio-only, with placeholders filling every standard tier left vacant.
// Duration is the resource duration in seconds, used for audio placeholder
// size estimates.
func Normalize(raw, extraAudio []media.RawFormat, duration int) []media.FormatVariant {
	candidates := filter(append(append([]media.RawFormat{}, raw...), extraAudio...))

	// Best-quality representative of each visual tier survives dedupe.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Height != candidates[j].Height {
			return candidates[i].Height > candidates[j].Height
		}
		return candidates[i].Size > candidates[j].Size
	})

	seen := make(map[dedupeKey]bool)
	var variants []media.FormatVariant
	for _, r := range candidates {
		v := toVariant(r)
		key := dedupeKey{v.HasVideo, v.HasAudio, v.QualityLabel, v.Ext}
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, v)
	}

	variants = append(variants, fillVideoTiers(variants)...)
	variants = append(variants, fillAudioTiers(variants, duration)...)

	sort.SliceStable(variants, func(i, j int) bool {
		if ci, cj := class(variants[i]), class(variants[j]); ci != cj {
			return ci < cj
		}
		return rank(variants[i]) > rank(variants[j])
	})
	return variants
}

func filter(raw []media.RawFormat) []media.RawFormat {
	var kept []media.RawFormat
	for _, r := range raw {
		switch {
		case r.HasVideo() && supportedVideoExts[r.Ext]:
			kept = append(kept, r)
		case !r.HasVideo() && r.HasAudio() && supportedAudioExts[r.Ext]:
			kept = append(kept, r)
		}
	}
	return kept
}

func toVariant(r media.RawFormat) media.FormatVariant {
	v := media.FormatVariant{
		ID:            r.ID,
		Ext:           r.Ext,
		Note:          r.Note,
		HasVideo:      r.HasVideo(),
		HasAudio:      r.HasAudio(),
		Size:          r.Size,
		Height:        r.Height,
		AudioChannels: r.AudioChannels,
	}
	if v.HasVideo {
		v.QualityLabel = VideoLabel(r.Height)
	} else {
		v.QualityLabel = AudioLabel(r.AudioBitrate)
	}
	if v.AudioChannels == 0 {
		v.AudioChannels = 2
	}
	return v
}

// fillVideoTiers synthesizes a placeholder for every standard resolution
// tier no real video variant covers.
func fillVideoTiers(variants []media.FormatVariant) []media.FormatVariant {
	covered := make(map[string]bool)
	var clone *media.FormatVariant
	for i, v := range variants {
		if !v.HasVideo {
			continue
		}
		covered[v.QualityLabel] = true
		if clone == nil {
			clone = &variants[i]
		}
	}

	var fills []media.FormatVariant
	for _, tier := range videoTiers {
		label := VideoLabel(tier)
		if covered[label] {
			continue
		}
		p := media.FormatVariant{
			ID:            fmt.Sprintf("%s%dp", media.PlaceholderPrefix, tier),
			Ext:           "mp4",
			QualityLabel:  label,
			HasVideo:      true,
			HasAudio:      true,
			Size:          int64(tier) * int64(tier) * videoSizeFactor,
			Height:        tier,
			AudioChannels: 2,
		}
		if clone != nil {
			p.Ext = clone.Ext
			p.HasAudio = clone.HasAudio
			p.AudioChannels = clone.AudioChannels
		}
		covered[label] = true
		fills = append(fills, p)
	}
	return fills
}

// fillAudioTiers synthesizes a placeholder for every standard audio bitrate
// no real audio-only variant covers.
func fillAudioTiers(variants []media.FormatVariant, duration int) []media.FormatVariant {
	covered := make(map[string]bool)
	var clone *media.FormatVariant
	for i, v := range variants {
		if v.HasVideo || !v.HasAudio {
			continue
		}
		covered[v.QualityLabel] = true
		if clone == nil {
			clone = &variants[i]
		}
	}

	var fills []media.FormatVariant
	for _, kbps := range audioTiers {
		label := AudioLabel(float64(kbps))
		if covered[label] {
			continue
		}
		p := media.FormatVariant{
			ID:            fmt.Sprintf("%s%dkbps", media.PlaceholderPrefix, kbps),
			Ext:           "m4a",
			QualityLabel:  label,
			HasAudio:      true,
			Size:          int64(duration) * int64(kbps) * 1000 / 8,
			AudioChannels: 2,
		}
		if clone != nil {
			p.Ext = clone.Ext
			p.AudioChannels = clone.AudioChannels
		}
		covered[label] = true
		fills = append(fills, p)
	}
	return fills
}

// class orders catalog sections: video-with-audio, video-only, audio-only.
func class(v media.FormatVariant) int {
	switch {
	case v.HasVideo && v.HasAudio:
		return 0
	case v.HasVideo:
		return 1
	default:
		return 2
	}
}

// rank orders within a section, best quality first.
func rank(v media.FormatVariant) int {
	if v.HasVideo {
		return v.Height
	}
	return nearestLabelKbps(v.QualityLabel)
}

func nearestLabelKbps(label string) int {
	var kbps int
	fmt.Sscanf(label, "%dkbps", &kbps)
	return kbps
}
