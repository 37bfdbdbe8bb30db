// Package info implements the metadata fetch path: cache lookup, metadata
// dump via the acquisition tool, supplementary audio probes, catalog
// normalization, and caching of the result.
package info

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/media/cache"
	"github.com/vidfetch/vidfetch/internal/media/catalog"
	"github.com/vidfetch/vidfetch/internal/runner"
)

// The primary dump does not reliably enumerate audio-only variants, so the
// tool is re-invoked once per standard audio tier to fill the catalog.
var audioProbeTiers = []int{320, 256, 192, 128}

// Service resolves resource references into normalized ResourceInfo.
type Service struct {
	inv    runner.Invoker
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewService creates an info service.
func NewService(inv runner.Invoker, c *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		inv:    inv,
		cache:  c,
		logger: logger.With().Str("component", "info").Logger(),
	}
}

// Fetch resolves a raw reference (bare id or locator URL) into a
// ResourceInfo with a normalized catalog. References naming a collection
// also carry the ordered member list.
func (s *Service) Fetch(ctx context.Context, rawRef string) (*media.ResourceInfo, error) {
	ref, err := media.ParseRef(rawRef)
	if err != nil {
		return nil, err
	}

	if ref.VideoID == "" {
		return s.FetchCollection(ctx, ref.CollectionID)
	}

	cacheKey := ref.VideoID
	if ref.CollectionID != "" {
		cacheKey = ref.VideoID + "+" + ref.CollectionID
	}
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	info, err := s.fetchVideo(ctx, ref.VideoID)
	if err != nil {
		return nil, err
	}

	if ref.CollectionID != "" {
		members, _, err := s.enumerateMembers(ctx, ref.CollectionID)
		if err != nil {
			// The single item is still useful without its sibling list.
			s.logger.Warn().Err(err).Str("collectionId", ref.CollectionID).Msg("member enumeration failed")
		} else {
			info.IsCollection = true
			info.Members = members
		}
	}

	s.cache.Put(cacheKey, info)
	return info, nil
}

// FetchCollection resolves a collection id into a ResourceInfo describing
// the collection and its ordered members.
func (s *Service) FetchCollection(ctx context.Context, collectionID string) (*media.ResourceInfo, error) {
	if collectionID == "" {
		return nil, media.ErrBadRef
	}

	cacheKey := "collection:" + collectionID
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	members, title, err := s.enumerateMembers(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = collectionID
	}

	var duration int
	for _, m := range members {
		duration += m.Duration
	}
	info := &media.ResourceInfo{
		ID:           collectionID,
		Title:        title,
		Duration:     duration,
		IsCollection: true,
		Members:      members,
	}
	if len(members) > 0 {
		info.Thumbnail = members[0].Thumbnail
	}

	s.cache.Put(cacheKey, info)
	return info, nil
}

// fetchVideo runs the metadata dump and the audio probes, then normalizes
// the combined variant list.
func (s *Service) fetchVideo(ctx context.Context, videoID string) (*media.ResourceInfo, error) {
	url := media.WatchURL(videoID)
	res, err := s.inv.Run(ctx, []string{"-J", "--no-playlist", "--no-warnings", url}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata dump failed: %w", err)
	}

	info, raws, err := media.ParseDump(res.Stdout)
	if err != nil {
		return nil, err
	}

	extraAudio := s.probeAudioTiers(ctx, url, info.Duration)
	info.Formats = catalog.Normalize(raws, extraAudio, info.Duration)
	return info, nil
}

// enumerateMembers runs a flat-playlist dump and returns ordered members.
func (s *Service) enumerateMembers(ctx context.Context, collectionID string) ([]media.CollectionMember, string, error) {
	args := []string{"--flat-playlist", "-j", "--no-warnings", media.CollectionURL(collectionID)}
	res, err := s.inv.Run(ctx, args, nil, nil)
	if err != nil {
		return nil, "", fmt.Errorf("collection enumeration failed: %w", err)
	}
	return media.ParseFlatPlaylist(res.Stdout)
}

const audioProbePrint = "%(format_id)s|%(ext)s|%(acodec)s|%(abr)s|%(filesize,filesize_approx)s|%(audio_channels)s"

// probeAudioTiers asks the tool which audio-only variant it would select
// for each standard bitrate. Failed probes are skipped; the normalizer
// fills the gaps with placeholders.
func (s *Service) probeAudioTiers(ctx context.Context, url string, duration int) []media.RawFormat {
	var extras []media.RawFormat
	for _, kbps := range audioProbeTiers {
		selector := fmt.Sprintf("bestaudio[abr<=%d]/bestaudio", kbps)
		args := []string{
			"--no-playlist", "--no-warnings", "--skip-download",
			"-f", selector,
			"--print", audioProbePrint,
			url,
		}
		res, err := s.inv.Run(ctx, args, nil, nil)
		if err != nil {
			continue
		}
		if raw, ok := parseAudioProbe(strings.TrimSpace(string(res.Stdout)), kbps, duration); ok {
			extras = append(extras, raw)
		}
	}
	return extras
}

// parseAudioProbe decodes one pipe-separated probe line.
func parseAudioProbe(line string, targetKbps, duration int) (media.RawFormat, bool) {
	fields := strings.Split(line, "|")
	if len(fields) != 6 || fields[0] == "" {
		return media.RawFormat{}, false
	}

	raw := media.RawFormat{
		ID:           fields[0],
		Ext:          fields[1],
		AudioCodec:   fields[2],
		AudioBitrate: float64(targetKbps),
	}
	if raw.AudioCodec == "" || raw.AudioCodec == "none" || raw.AudioCodec == "NA" {
		return media.RawFormat{}, false
	}
	if abr, err := strconv.ParseFloat(fields[3], 64); err == nil && abr > 0 {
		raw.AudioBitrate = abr
	}
	if size, err := strconv.ParseInt(fields[4], 10, 64); err == nil {
		raw.Size = size
	}
	if raw.Size == 0 && duration > 0 {
		raw.Size = int64(duration) * int64(targetKbps) * 1000 / 8
	}
	if ch, err := strconv.Atoi(fields[5]); err == nil {
		raw.AudioChannels = ch
	}
	return raw, true
}
