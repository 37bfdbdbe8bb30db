package playlist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/runner"
)

// scriptedInvoker records invocations and delegates to fn.
type scriptedInvoker struct {
	calls [][]string
	fn    func(args []string) error
}

func (s *scriptedInvoker) Run(ctx context.Context, args []string, sink io.Writer, onLine func(string)) (runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return runner.Result{}, err
	}
	s.calls = append(s.calls, args)
	if s.fn == nil {
		return runner.Result{}, nil
	}
	return runner.Result{}, s.fn(args)
}

// workdirOf extracts the working directory from the batch output template.
func workdirOf(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return filepath.Dir(args[i+1])
		}
	}
	return ""
}

// writeMembers drops fake downloaded files into the batch working dir.
func writeMembers(t *testing.T, dir string, names map[string]string) {
	t.Helper()
	for name, content := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func zipStub(t *testing.T) *scriptedInvoker {
	t.Helper()
	s := &scriptedInvoker{}
	s.fn = func(args []string) error {
		// args: -j -q out files...
		if len(args) < 4 || args[0] != "-j" || args[1] != "-q" {
			t.Fatalf("unexpected archiver args: %v", args)
		}
		var buf bytes.Buffer
		buf.WriteString("ZIP:")
		for _, f := range args[3:] {
			buf.WriteString(filepath.Base(f) + ";")
		}
		return os.WriteFile(args[2], buf.Bytes(), 0o644)
	}
	return s
}

func newAggregator(acq, arch *scriptedInvoker) *Aggregator {
	return NewAggregator(acq, arch, config.DownloadConfig{Retries: 3, FragmentRetries: 3}, zerolog.Nop())
}

func TestAggregator_RejectsEmptyMemberList(t *testing.T) {
	a := newAggregator(&scriptedInvoker{}, &scriptedInvoker{})

	_, err := a.Download(context.Background(), Request{CollectionID: "PLxyz", FormatID: "22"}, io.Discard, nil)

	var f *download.Failure
	if !errors.As(err, &f) || f.Code != download.ReasonInvalidInput {
		t.Fatalf("Download() error = %v, want invalid_input", err)
	}
}

func TestAggregator_RejectsPlaceholderFormat(t *testing.T) {
	acq := &scriptedInvoker{}
	a := newAggregator(acq, &scriptedInvoker{})

	_, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa"},
		FormatID:     media.PlaceholderPrefix + "720p",
	}, io.Discard, nil)

	var f *download.Failure
	if !errors.As(err, &f) || f.Code != download.ReasonInvalidInput {
		t.Fatalf("Download() error = %v, want invalid_input", err)
	}
	if len(acq.calls) != 0 {
		t.Errorf("tool invoked %d times for placeholder format, want 0", len(acq.calls))
	}
}

func TestAggregator_SingleFilePassthrough(t *testing.T) {
	var workdir string
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		workdir = workdirOf(args)
		writeMembers(t, workdir, map[string]string{"Only Song.m4a": "audio bytes"})
		return nil
	}
	arch := &scriptedInvoker{}
	a := newAggregator(acq, arch)

	var sink bytes.Buffer
	res, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa"},
		FormatID:     "140",
	}, &sink, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if res.Archived {
		t.Error("single file should stream without archiving")
	}
	if res.Filename != "Only Song.m4a" {
		t.Errorf("Filename = %q, want %q", res.Filename, "Only Song.m4a")
	}
	if res.Files != 1 {
		t.Errorf("Files = %d, want 1", res.Files)
	}
	if sink.String() != "audio bytes" {
		t.Errorf("sink = %q, want the member's bytes", sink.String())
	}
	if len(arch.calls) != 0 {
		t.Errorf("archiver invoked %d times for a single file, want 0", len(arch.calls))
	}
	if _, serr := os.Stat(workdir); !os.IsNotExist(serr) {
		t.Errorf("working directory %s not cleaned up", workdir)
	}
}

func TestAggregator_MultipleFilesArchived(t *testing.T) {
	var workdir string
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		workdir = workdirOf(args)
		writeMembers(t, workdir, map[string]string{
			"First.mp4":  "one",
			"Second.mp4": "two",
		})
		return nil
	}
	arch := zipStub(t)
	a := newAggregator(acq, arch)

	var sink bytes.Buffer
	res, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa", "bbbbbbbbbbb"},
		FormatID:     "22",
	}, &sink, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	if !res.Archived {
		t.Error("multiple files must be archived")
	}
	if res.Filename != "PLxyz.zip" {
		t.Errorf("Filename = %q, want %q", res.Filename, "PLxyz.zip")
	}
	if res.Files != 2 {
		t.Errorf("Files = %d, want 2", res.Files)
	}
	if !strings.HasPrefix(sink.String(), "ZIP:") {
		t.Errorf("sink = %q, want archive bytes", sink.String())
	}
	if len(arch.calls) != 1 {
		t.Fatalf("archiver invoked %d times, want 1", len(arch.calls))
	}
	if _, serr := os.Stat(workdir); !os.IsNotExist(serr) {
		t.Errorf("working directory %s not cleaned up", workdir)
	}
}

func TestAggregator_BatchIncludesAllMemberURLs(t *testing.T) {
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		writeMembers(t, workdirOf(args), map[string]string{"a.mp4": "x"})
		return nil
	}
	a := newAggregator(acq, zipStub(t))

	members := []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"}
	_, err := a.Download(context.Background(), Request{CollectionID: "PLxyz", MemberIDs: members, FormatID: "22"}, io.Discard, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	joined := strings.Join(acq.calls[0], " ")
	if !strings.Contains(joined, "--ignore-errors") {
		t.Error("batch invocation must carry --ignore-errors")
	}
	for _, id := range members {
		if !strings.Contains(joined, media.WatchURL(id)) {
			t.Errorf("batch args missing member %s", id)
		}
	}
}

func TestAggregator_NothingDownloaded(t *testing.T) {
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		return &runner.ExitError{Code: 1, Stderr: "ERROR: all members failed"}
	}
	a := newAggregator(acq, &scriptedInvoker{})

	_, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa"},
		FormatID:     "22",
	}, io.Discard, nil)

	var f *download.Failure
	if !errors.As(err, &f) || f.Code != download.ReasonFailed {
		t.Fatalf("Download() error = %v, want download_failed", err)
	}
}

func TestAggregator_PartialBatchStillSucceeds(t *testing.T) {
	// The batch exits non-zero because some members failed, but usable
	// files exist; the aggregator must deliver them.
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		writeMembers(t, workdirOf(args), map[string]string{"Survivor.mp4": "kept"})
		return &runner.ExitError{Code: 1, Stderr: "ERROR: one member is private"}
	}
	a := newAggregator(acq, &scriptedInvoker{})

	var sink bytes.Buffer
	res, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa", "bbbbbbbbbbb"},
		FormatID:     "22",
	}, &sink, nil)
	if err != nil {
		t.Fatalf("Download() error = %v, want partial success", err)
	}
	if res.Files != 1 || sink.String() != "kept" {
		t.Errorf("Result = %+v sink = %q, want the surviving file", res, sink.String())
	}
}

func TestAggregator_SkipsInProgressArtifacts(t *testing.T) {
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		dir := workdirOf(args)
		writeMembers(t, dir, map[string]string{
			"Whole.mp4":       "good",
			"Broken.mp4.part": "partial",
			"Broken.mp4.ytdl": "state",
		})
		// Zero-byte results are never usable.
		if err := os.WriteFile(filepath.Join(dir, "Empty.mp4"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		return nil
	}
	a := newAggregator(acq, &scriptedInvoker{})

	var sink bytes.Buffer
	res, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa"},
		FormatID:     "22",
	}, &sink, nil)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if res.Files != 1 || res.Filename != "Whole.mp4" {
		t.Errorf("Result = %+v, want only the finished file", res)
	}
}

func TestAggregator_ArchiveFailure(t *testing.T) {
	acq := &scriptedInvoker{}
	acq.fn = func(args []string) error {
		writeMembers(t, workdirOf(args), map[string]string{"a.mp4": "x", "b.mp4": "y"})
		return nil
	}
	arch := &scriptedInvoker{fn: func(args []string) error {
		return &runner.ExitError{Code: 15, Stderr: "zip I/O error"}
	}}
	a := newAggregator(acq, arch)

	_, err := a.Download(context.Background(), Request{
		CollectionID: "PLxyz",
		MemberIDs:    []string{"aaaaaaaaaaa", "bbbbbbbbbbb"},
		FormatID:     "22",
	}, io.Discard, nil)

	var f *download.Failure
	if !errors.As(err, &f) || f.Code != download.ReasonArchive {
		t.Fatalf("Download() error = %v, want archive_failed", err)
	}
}
