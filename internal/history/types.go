package history

// EventType represents the type of history event.
type EventType string

const (
	EventTypeGrabbed   EventType = "grabbed"
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
)

// Entry represents one download history record.
type Entry struct {
	ID         int64     `json:"id"`
	EventType  EventType `json:"eventType"`
	ResourceID string    `json:"resourceId"`
	Title      string    `json:"title,omitempty"`
	FormatID   string    `json:"formatId,omitempty"`
	Quality    string    `json:"quality,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  string    `json:"createdAt"`
}

// CreateInput contains fields for recording a history event.
type CreateInput struct {
	EventType  EventType
	ResourceID string
	Title      string
	FormatID   string
	Quality    string
	Strategy   string
	Error      string
}

// ListOptions contains options for listing history.
type ListOptions struct {
	EventType string
	Page      int
	PageSize  int
}

// ListResponse is a page of history entries.
type ListResponse struct {
	Items      []Entry `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalCount int64   `json:"totalCount"`
}
