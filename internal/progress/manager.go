package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/websocket"
)

// Status represents the current state of a tracked download.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// EventType identifies the type of broadcast frame.
type EventType string

const (
	EventTypeStarted   EventType = "download:started"
	EventTypeProgress  EventType = "download:progress"
	EventTypeCompleted EventType = "download:completed"
	EventTypeError     EventType = "download:error"
	EventTypeCancelled EventType = "download:cancelled"
)

// Activity is one tracked download as seen by progress subscribers.
type Activity struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resourceId"`
	Title       string     `json:"title"`
	Status      Status     `json:"status"`
	Percent     float64    `json:"percent"`
	Rate        string     `json:"rate,omitempty"`
	ETA         string     `json:"eta,omitempty"`
	Strategy    string     `json:"strategy,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Manager tracks in-flight downloads and broadcasts their progress over the
// websocket hub.
type Manager struct {
	hub        *websocket.Hub
	activities map[string]*Activity
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewManager creates a new progress manager.
func NewManager(hub *websocket.Hub, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		logger:     logger.With().Str("component", "progress").Logger(),
	}
}

// Start begins tracking a download and announces it.
func (m *Manager) Start(id, resourceID, title string) *Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity := &Activity{
		ID:         id,
		ResourceID: resourceID,
		Title:      title,
		Status:     StatusInProgress,
		StartedAt:  time.Now(),
	}
	m.activities[id] = activity
	m.broadcast(EventTypeStarted, activity)

	m.logger.Debug().Str("id", id).Str("resourceId", resourceID).Msg("download started")
	return activity
}

// Update applies a parsed progress event to a tracked download.
func (m *Manager) Update(id string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.activities[id]
	if !ok {
		return
	}
	activity.Percent = ev.Percent
	activity.Rate = ev.Rate
	activity.ETA = ev.ETA
	activity.Strategy = ev.Strategy
	m.broadcast(EventTypeProgress, activity)
}

// Complete marks a download as finished and announces the terminal event.
func (m *Manager) Complete(id string) {
	m.finish(id, StatusCompleted, EventTypeCompleted, "")
}

// Fail marks a download as failed with a user-facing message.
func (m *Manager) Fail(id, errorMsg string) {
	m.finish(id, StatusFailed, EventTypeError, errorMsg)
}

// Cancel marks a download as cancelled by the caller.
func (m *Manager) Cancel(id string) {
	m.finish(id, StatusCancelled, EventTypeCancelled, "")
}

func (m *Manager) finish(id string, status Status, event EventType, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.activities[id]
	if !ok {
		return
	}
	now := time.Now()
	activity.Status = status
	activity.CompletedAt = &now
	activity.Error = errorMsg
	if status == StatusCompleted {
		activity.Percent = 100
	}
	m.broadcast(event, activity)
	delete(m.activities, id)

	m.logger.Debug().Str("id", id).Str("status", string(status)).Msg("download finished")
}

// Get returns a tracked download by id, or nil.
func (m *Manager) Get(id string) *Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activities[id]
}

// All returns every in-flight download.
func (m *Manager) All() []*Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Activity, 0, len(m.activities))
	for _, a := range m.activities {
		result = append(result, a)
	}
	return result
}

func (m *Manager) broadcast(event EventType, activity *Activity) {
	if m.hub == nil {
		return
	}
	m.hub.Broadcast(string(event), activity)
}
