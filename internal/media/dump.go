package media

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// dumpInfo mirrors the acquisition tool's single-item JSON dump. Only the
// fields the pipeline consumes are declared.
type dumpInfo struct {
	ID          string                    `json:"id"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Thumbnail   string                    `json:"thumbnail"`
	Duration    float64                   `json:"duration"`
	Channel     string                    `json:"channel"`
	Uploader    string                    `json:"uploader"`
	Formats     []dumpFormat              `json:"formats"`
	Subtitles   map[string][]dumpSubtitle `json:"subtitles"`
}

type dumpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	FormatNote     string  `json:"format_note"`
	Vcodec         string  `json:"vcodec"`
	Acodec         string  `json:"acodec"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	ABR            float64 `json:"abr"`
	AudioChannels  int     `json:"audio_channels"`
}

type dumpSubtitle struct {
	Name string `json:"name"`
}

// ParseDump decodes a single-item metadata dump into a ResourceInfo shell
// (no normalized catalog yet) plus the raw format list for the normalizer.
func ParseDump(data []byte) (*ResourceInfo, []RawFormat, error) {
	var d dumpInfo
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("failed to parse metadata dump: %w", err)
	}
	if d.ID == "" {
		return nil, nil, fmt.Errorf("metadata dump carries no resource id")
	}

	info := &ResourceInfo{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Thumbnail:   d.Thumbnail,
		Duration:    int(d.Duration),
		Channel:     d.Channel,
	}
	if info.Channel == "" {
		info.Channel = d.Uploader
	}

	raws := make([]RawFormat, 0, len(d.Formats))
	for _, f := range d.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		raws = append(raws, RawFormat{
			ID:            f.FormatID,
			Ext:           f.Ext,
			Note:          f.FormatNote,
			VideoCodec:    f.Vcodec,
			AudioCodec:    f.Acodec,
			Height:        f.Height,
			AudioBitrate:  f.ABR,
			AudioChannels: f.AudioChannels,
			Size:          size,
		})
	}

	// Subtitle map keys iterate in random order; keep tracks stable.
	langs := make([]string, 0, len(d.Subtitles))
	for lang := range d.Subtitles {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		name := lang
		if tracks := d.Subtitles[lang]; len(tracks) > 0 && tracks[0].Name != "" {
			name = tracks[0].Name
		}
		info.Captions = append(info.Captions, CaptionTrack{Language: lang, Name: name})
	}

	return info, raws, nil
}

// flatEntry mirrors one line of the tool's flat-playlist JSON-lines dump.
type flatEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
	Playlist  string  `json:"playlist"`
}

// ParseFlatPlaylist decodes a flat-playlist JSON-lines dump into ordered
// collection members. Lines that fail to decode or carry no id are skipped;
// positions are assigned by surviving order, 0..N-1. The second return value
// is the playlist title when the dump reports one.
func ParseFlatPlaylist(data []byte) ([]CollectionMember, string, error) {
	var members []CollectionMember
	var title string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e flatEntry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			continue
		}
		if title == "" && e.Playlist != "" {
			title = e.Playlist
		}
		members = append(members, CollectionMember{
			ID:        e.ID,
			Title:     e.Title,
			Duration:  int(e.Duration),
			Thumbnail: e.Thumbnail,
			Position:  len(members),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to scan playlist dump: %w", err)
	}
	if len(members) == 0 {
		return nil, "", fmt.Errorf("playlist dump contains no members")
	}
	return members, title, nil
}
