package history

import (
	"context"
	"testing"

	"github.com/vidfetch/vidfetch/internal/testutil"
)

func TestService_Record(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	entry, err := service.Record(ctx, CreateInput{
		EventType:  EventTypeCompleted,
		ResourceID: "dQw4w9WgXcQ",
		Title:      "Test Video",
		FormatID:   "22",
		Quality:    "720p HD",
		Strategy:   "direct-stream",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if entry.ID == 0 {
		t.Error("Record() entry.ID = 0, want non-zero")
	}
	if entry.EventType != EventTypeCompleted {
		t.Errorf("EventType = %q, want %q", entry.EventType, EventTypeCompleted)
	}
	if entry.ResourceID != "dQw4w9WgXcQ" {
		t.Errorf("ResourceID = %q, want %q", entry.ResourceID, "dQw4w9WgXcQ")
	}
	if entry.CreatedAt == "" {
		t.Error("CreatedAt empty, want a timestamp")
	}
}

func TestService_RecordFailure(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)

	entry, err := service.Record(context.Background(), CreateInput{
		EventType:  EventTypeFailed,
		ResourceID: "dQw4w9WgXcQ",
		FormatID:   "22",
		Error:      "Access to this resource is forbidden or restricted.",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.Error == "" {
		t.Error("Error empty, want the failure message")
	}
}

func TestService_List(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := service.Record(ctx, CreateInput{
			EventType:  EventTypeCompleted,
			ResourceID: "dQw4w9WgXcQ",
		}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if _, err := service.Record(ctx, CreateInput{
		EventType:  EventTypeFailed,
		ResourceID: "dQw4w9WgXcQ",
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	resp, err := service.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", resp.TotalCount)
	}
	if len(resp.Items) != 4 {
		t.Errorf("got %d items, want 4", len(resp.Items))
	}
	// Newest first.
	if resp.Items[0].EventType != EventTypeFailed {
		t.Errorf("first item EventType = %q, want newest entry", resp.Items[0].EventType)
	}
}

func TestService_ListFiltersByEventType(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	service.Record(ctx, CreateInput{EventType: EventTypeCompleted, ResourceID: "a"})
	service.Record(ctx, CreateInput{EventType: EventTypeFailed, ResourceID: "b"})

	resp, err := service.List(ctx, ListOptions{EventType: string(EventTypeFailed)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", resp.TotalCount)
	}
	if len(resp.Items) != 1 || resp.Items[0].EventType != EventTypeFailed {
		t.Errorf("Items = %+v, want only failed entries", resp.Items)
	}
}

func TestService_ListPagination(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := service.Record(ctx, CreateInput{
			EventType:  EventTypeCompleted,
			ResourceID: "dQw4w9WgXcQ",
		}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	page1, err := service.List(ctx, ListOptions{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page1.Items) != 2 || page1.TotalCount != 5 {
		t.Errorf("page 1 = %d items total %d, want 2 of 5", len(page1.Items), page1.TotalCount)
	}

	page3, err := service.List(ctx, ListOptions{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page3.Items) != 1 {
		t.Errorf("page 3 = %d items, want 1", len(page3.Items))
	}
}

func TestService_DeleteAll(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	service := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()

	service.Record(ctx, CreateInput{EventType: EventTypeCompleted, ResourceID: "a"})
	if err := service.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	resp, err := service.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 0 {
		t.Errorf("TotalCount = %d after DeleteAll, want 0", resp.TotalCount)
	}
}
