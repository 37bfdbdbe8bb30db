// Package history records terminal download outcomes. Best effort only;
// recording failures are logged and never fail a download.
package history

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

// Service provides download history management.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record inserts a history entry.
func (s *Service) Record(ctx context.Context, input CreateInput) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO download_history (event_type, resource_id, title, format_id, quality, strategy, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, event_type, resource_id, title, format_id, quality, strategy, error, created_at`,
		string(input.EventType), input.ResourceID, input.Title, input.FormatID,
		input.Quality, input.Strategy, input.Error,
	)
	return scanEntry(row)
}

// RecordAsync records an entry on a best-effort basis, logging failures.
func (s *Service) RecordAsync(input CreateInput) {
	go func() {
		if _, err := s.Record(context.Background(), input); err != nil {
			s.logger.Warn().Err(err).Str("resourceId", input.ResourceID).Msg("failed to record history entry")
		}
	}()
}

// List lists history entries with pagination and optional event filtering,
// newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	offset := (opts.Page - 1) * opts.PageSize

	var totalCount int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM download_history
		WHERE (? = '' OR event_type = ?)`,
		opts.EventType, opts.EventType,
	).Scan(&totalCount); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, resource_id, title, format_id, quality, strategy, error, created_at
		FROM download_history
		WHERE (? = '' OR event_type = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		opts.EventType, opts.EventType, opts.PageSize, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Entry, 0, opts.PageSize)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
	}, nil
}

// DeleteAll removes every history entry.
func (s *Service) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM download_history`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var eventType string
	if err := row.Scan(&e.ID, &eventType, &e.ResourceID, &e.Title, &e.FormatID,
		&e.Quality, &e.Strategy, &e.Error, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.EventType = EventType(eventType)
	return &e, nil
}
