package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/history"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/playlist"
	"github.com/vidfetch/vidfetch/internal/progress"
)

// startPayload is the websocket command that begins a download with
// server-push progress. The artifact is saved into the matching storage
// category instead of being streamed back.
type startPayload struct {
	download.Request
	Collection   bool     `json:"collection,omitempty"`
	CollectionID string   `json:"collectionId,omitempty"`
	MemberIDs    []string `json:"memberIds,omitempty"`
}

// cancelPayload identifies the tracked download to abort.
type cancelPayload struct {
	ID string `json:"id"`
}

// handleCommand dispatches client-initiated websocket commands.
func (s *Server) handleCommand(msgType string, payload json.RawMessage) {
	switch msgType {
	case "download:start":
		var p startPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			s.logger.Debug().Err(err).Msg("malformed download command")
			return
		}
		go s.runTrackedDownload(p)
	case "download:cancel":
		var p cancelPayload
		if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
			s.logger.Debug().Err(err).Msg("malformed cancel command")
			return
		}
		s.cancelTracked(p.ID)
	}
}

func (s *Server) registerCancel(activityID string, cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancels[activityID] = cancel
	s.cancelMu.Unlock()
}

func (s *Server) unregisterCancel(activityID string) {
	s.cancelMu.Lock()
	delete(s.cancels, activityID)
	s.cancelMu.Unlock()
}

func (s *Server) cancelTracked(activityID string) {
	s.cancelMu.Lock()
	cancel, ok := s.cancels[activityID]
	s.cancelMu.Unlock()
	if !ok {
		s.logger.Debug().Str("activityId", activityID).Msg("cancel for unknown download")
		return
	}
	cancel()
}

// runTrackedDownload performs one download end to end, broadcasting
// progress and recording the terminal outcome. Partially written files are
// removed on failure or cancellation.
func (s *Server) runTrackedDownload(p startPayload) {
	activityID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.registerCancel(activityID, cancel)
	defer s.unregisterCancel(activityID)

	if p.Collection {
		s.runTrackedCollection(ctx, activityID, p)
		return
	}

	info, err := s.info.Fetch(ctx, p.ResourceID)
	if err != nil {
		s.progress.Start(activityID, p.ResourceID, p.ResourceID)
		s.progress.Fail(activityID, "Failed to fetch resource metadata.")
		return
	}

	s.progress.Start(activityID, p.ResourceID, info.Title)

	if err := s.engine.Validate(p.Request, info); err != nil {
		s.failTracked(activityID, p.ResourceID, p.FormatID, err)
		return
	}

	variant := findVariant(info, p.FormatID)
	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeGrabbed,
		ResourceID: p.ResourceID,
		Title:      info.Title,
		FormatID:   p.FormatID,
		Quality:    variant.QualityLabel,
	})
	dest := filepath.Join(s.cfg.CategoryDir(categoryFor(variant)), safeFilename(info.Title, variant.Ext))

	f, err := os.Create(dest)
	if err != nil {
		s.logger.Error().Err(err).Str("path", dest).Msg("failed to create output file")
		s.progress.Fail(activityID, "Failed to create the output file.")
		return
	}

	err = s.engine.Download(ctx, p.Request, info, f, func(ev progress.Event) {
		s.progress.Update(activityID, ev)
	})
	f.Close()

	if err != nil {
		os.Remove(dest)
		if ctx.Err() != nil {
			s.progress.Cancel(activityID)
			return
		}
		s.failTracked(activityID, p.ResourceID, p.FormatID, err)
		return
	}

	s.progress.Complete(activityID)
	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeCompleted,
		ResourceID: p.ResourceID,
		Title:      info.Title,
		FormatID:   p.FormatID,
		Quality:    variant.QualityLabel,
	})
}

func (s *Server) runTrackedCollection(ctx context.Context, activityID string, p startPayload) {
	s.progress.Start(activityID, p.CollectionID, p.CollectionID)

	req := playlist.Request{
		CollectionID: p.CollectionID,
		MemberIDs:    p.MemberIDs,
		FormatID:     p.FormatID,
	}
	if len(req.MemberIDs) == 0 && req.CollectionID != "" {
		info, err := s.info.FetchCollection(ctx, req.CollectionID)
		if err != nil {
			s.progress.Fail(activityID, "Failed to fetch collection metadata.")
			return
		}
		for _, m := range info.Members {
			req.MemberIDs = append(req.MemberIDs, m.ID)
		}
	}

	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeGrabbed,
		ResourceID: p.CollectionID,
		Title:      p.CollectionID,
		FormatID:   p.FormatID,
	})

	dest := filepath.Join(s.cfg.CategoryDir("video-with-audio"), safeFilename(p.CollectionID, "zip"))
	f, err := os.Create(dest)
	if err != nil {
		s.progress.Fail(activityID, "Failed to create the output file.")
		return
	}

	result, err := s.aggregator.Download(ctx, req, f, func(ev progress.Event) {
		s.progress.Update(activityID, ev)
	})
	f.Close()

	if err != nil {
		os.Remove(dest)
		if ctx.Err() != nil {
			s.progress.Cancel(activityID)
			return
		}
		s.failTracked(activityID, p.CollectionID, p.FormatID, err)
		return
	}

	// A single-member passthrough is not an archive; store it under its
	// own name.
	if !result.Archived {
		renamed := filepath.Join(filepath.Dir(dest), result.Filename)
		if err := os.Rename(dest, renamed); err == nil {
			dest = renamed
		}
	}

	s.progress.Complete(activityID)
	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeCompleted,
		ResourceID: p.CollectionID,
		Title:      filepath.Base(dest),
		FormatID:   p.FormatID,
	})
}

func (s *Server) failTracked(activityID, resourceID, formatID string, err error) {
	msg := "The download failed. Please try again later."
	if f, ok := err.(*download.Failure); ok {
		msg = f.Message
	}
	s.progress.Fail(activityID, msg)
	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeFailed,
		ResourceID: resourceID,
		FormatID:   formatID,
		Error:      msg,
	})
}

// categoryFor maps a format variant onto its storage category.
func categoryFor(v *media.FormatVariant) string {
	switch {
	case v == nil:
		return "video-with-audio"
	case v.HasVideo && v.HasAudio:
		return "video-with-audio"
	case v.HasVideo:
		return "video-only"
	default:
		return "audio-only"
	}
}
