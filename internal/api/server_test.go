package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/info"
	"github.com/vidfetch/vidfetch/internal/library"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/media/cache"
	"github.com/vidfetch/vidfetch/internal/playlist"
	"github.com/vidfetch/vidfetch/internal/progress"
	"github.com/vidfetch/vidfetch/internal/runner"
	"github.com/vidfetch/vidfetch/internal/testutil"
	"github.com/vidfetch/vidfetch/internal/websocket"

	historyservice "github.com/vidfetch/vidfetch/internal/history"
)

const videoDump = `{
	"id": "dQw4w9WgXcQ",
	"title": "Test Video",
	"duration": 100,
	"channel": "Test Channel",
	"formats": [
		{"format_id": "22", "ext": "mp4", "vcodec": "h264", "acodec": "aac", "height": 720, "filesize": 1000}
	]
}`

// stubTool answers metadata dumps, audio probes, and download invocations
// the way the real acquisition tool would.
type stubTool struct{}

func (stubTool) Run(ctx context.Context, args []string, sink io.Writer, onLine func(string)) (runner.Result, error) {
	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "-J"):
		return runner.Result{Stdout: []byte(videoDump)}, nil
	case strings.Contains(joined, "--print"):
		return runner.Result{}, &runner.ExitError{Code: 1, Stderr: "no audio-only format"}
	case strings.Contains(joined, "-o -"):
		sink.Write([]byte("streamed bytes"))
		return runner.Result{}, nil
	default:
		return runner.Result{}, &runner.ExitError{Code: 1, Stderr: "unexpected invocation"}
	}
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	return setupTestServerWith(t, stubTool{})
}

func setupTestServerWith(t *testing.T, tool runner.Invoker) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	// History records asynchronously; a test-bound logger could be written
	// to after the test finishes.
	logger := zerolog.Nop()

	cfg := config.Default()
	cfg.Storage.BaseDir = t.TempDir()

	metaCache := cache.New(cache.Config{TTL: time.Minute, MaxItems: 10})
	hub := websocket.NewHub()
	go hub.Run()

	librarySvc, err := library.NewService(cfg.Storage.BaseDir, logger)
	if err != nil {
		t.Fatalf("library.NewService() error = %v", err)
	}

	return NewServer(
		cfg,
		info.NewService(tool, metaCache, logger),
		download.NewEngine(tool, cfg.Download, logger),
		playlist.NewAggregator(tool, tool, cfg.Download, logger),
		progress.NewManager(hub, logger),
		hub,
		historyservice.NewService(tdb.Conn, logger),
		librarySvc,
		logger,
	)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestServer_Health(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestServer_InfoMissingRef(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/info", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing ref", rec.Code)
	}
}

func TestServer_InfoBadRef(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/info?ref=https%3A%2F%2Fexample.com%2Fpage.html", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unrecognized ref", rec.Code)
	}
}

func TestServer_Info(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/info?ref=dQw4w9WgXcQ", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var got media.ResourceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Title != "Test Video" {
		t.Errorf("Title = %q, want %q", got.Title, "Test Video")
	}
	if len(got.Formats) == 0 {
		t.Error("response carries no formats")
	}
}

func TestServer_DownloadStreams(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/download",
		`{"resourceId": "dQw4w9WgXcQ", "formatId": "22"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "streamed bytes" {
		t.Errorf("body = %q, want the streamed payload", rec.Body.String())
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "Test Video.mp4") {
		t.Errorf("Content-Disposition = %q, want the sanitized title", cd)
	}
}

func TestServer_DownloadRecordsGrabbed(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/download",
		`{"resourceId": "dQw4w9WgXcQ", "formatId": "22"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	waitFor(t, "history records", func() bool {
		return listHistory(t, s).TotalCount >= 2
	})
	resp := listHistory(t, s)
	if !hasEvent(resp, "grabbed", "dQw4w9WgXcQ") {
		t.Error("no grabbed event recorded before streaming")
	}
	if !hasEvent(resp, "completed", "dQw4w9WgXcQ") {
		t.Error("no completed event recorded after streaming")
	}
}

func TestServer_DownloadPlaceholderRejected(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/download",
		`{"resourceId": "dQw4w9WgXcQ", "formatId": "`+media.PlaceholderPrefix+`1080p"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for placeholder format", rec.Code)
	}
}

func TestServer_DownloadUnknownFormat(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/download",
		`{"resourceId": "dQw4w9WgXcQ", "formatId": "999"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown format", rec.Code)
	}
}

func TestServer_ActiveDownloadsEmpty(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/downloads/active", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestServer_HistoryRoutes(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/history", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}
}

func TestServer_FilesRoutes(t *testing.T) {
	s := setupTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/files/audio-only", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/files/not-real", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown category", rec.Code)
	}
}

func TestFailureStatus(t *testing.T) {
	tests := []struct {
		code download.ReasonCode
		want int
	}{
		{download.ReasonInvalidInput, http.StatusBadRequest},
		{download.ReasonToolMissing, http.StatusInternalServerError},
		{download.ReasonForbidden, http.StatusBadGateway},
		{download.ReasonUnavailable, http.StatusBadGateway},
		{download.ReasonAgeRestricted, http.StatusBadGateway},
		{download.ReasonFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := failureStatus(download.NewFailure(tt.code, "x")); got != tt.want {
			t.Errorf("failureStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		title, ext, want string
	}{
		{"Plain Title", "mp4", "Plain Title.mp4"},
		{`What: "A/B" <test>?`, "mp4", "What_ _A_B_ _test__.mp4"},
		{"", "m4a", "download.m4a"},
		{"No Extension", "", "No Extension"},
	}
	for _, tt := range tests {
		if got := safeFilename(tt.title, tt.ext); got != tt.want {
			t.Errorf("safeFilename(%q, %q) = %q, want %q", tt.title, tt.ext, got, tt.want)
		}
	}
}
