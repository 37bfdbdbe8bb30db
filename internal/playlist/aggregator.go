// Package playlist fans the acquisition tool out over a collection's
// members into a private working directory, then streams either the single
// result or an archive of all results. Every temporary file and the
// directory itself are removed on every exit path.
package playlist

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/progress"
	"github.com/vidfetch/vidfetch/internal/runner"
)

// Request describes one collection download: which members to fetch and the
// format to fetch them in.
type Request struct {
	CollectionID string   `json:"collectionId"`
	MemberIDs    []string `json:"memberIds"`
	FormatID     string   `json:"formatId"`
}

// Result describes what was streamed to the caller.
type Result struct {
	Archived bool   `json:"archived"`
	Filename string `json:"filename"`
	Files    int    `json:"files"`
}

// Aggregator drives batch downloads and archive bundling.
type Aggregator struct {
	inv      runner.Invoker // acquisition tool
	archiver runner.Invoker // archiving utility
	flags    config.DownloadConfig
	logger   zerolog.Logger
}

// NewAggregator creates a playlist aggregator.
func NewAggregator(inv, archiver runner.Invoker, flags config.DownloadConfig, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		inv:      inv,
		archiver: archiver,
		flags:    flags,
		logger:   logger.With().Str("component", "playlist").Logger(),
	}
}

// Download fetches all requested members with a single batch invocation and
// streams the outcome to sink: the lone file when exactly one member
// succeeded, an archive when two or more did. Per-member errors do not
// abort the batch.
func (a *Aggregator) Download(ctx context.Context, req Request, sink io.Writer, onEvent func(progress.Event)) (Result, error) {
	if len(req.MemberIDs) == 0 {
		return Result{}, download.NewFailure(download.ReasonInvalidInput, "a collection download needs at least one member")
	}
	if strings.HasPrefix(req.FormatID, media.PlaceholderPrefix) {
		return Result{}, download.NewFailure(download.ReasonInvalidInput,
			fmt.Sprintf("format %q is a placeholder tier and cannot be downloaded", req.FormatID))
	}
	if onEvent == nil {
		onEvent = func(progress.Event) {}
	}

	dir := filepath.Join(os.TempDir(), "vidfetch-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return Result{}, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	reporter := progress.NewReporter("batch", 0, onEvent)
	if err := a.runBatch(ctx, req, dir, reporter.Line); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// A non-zero batch exit with usable files is still a success; the
		// tool reports per-member failures through its exit code even with
		// error-ignoring enabled.
		if files, ferr := usableFiles(dir); ferr != nil || len(files) == 0 {
			a.logger.Warn().Err(err).Str("collectionId", req.CollectionID).Msg("batch call failed")
			return Result{}, download.NewFailure(download.ReasonFailed, "Nothing could be downloaded from this collection.")
		}
	}

	files, err := usableFiles(dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to enumerate working directory: %w", err)
	}

	switch len(files) {
	case 0:
		return Result{}, download.NewFailure(download.ReasonFailed, "Nothing could be downloaded from this collection.")

	case 1:
		if err := streamFile(files[0], sink); err != nil {
			return Result{}, err
		}
		reporter.Finish()
		a.logger.Info().Str("collectionId", req.CollectionID).Msg("single member passthrough")
		return Result{Archived: false, Filename: filepath.Base(files[0]), Files: 1}, nil

	default:
		archive := filepath.Join(dir, "bundle.zip")
		if err := a.buildArchive(ctx, archive, files); err != nil {
			return Result{}, err
		}
		if err := streamFile(archive, sink); err != nil {
			return Result{}, err
		}
		reporter.Finish()
		a.logger.Info().Int("files", len(files)).Str("collectionId", req.CollectionID).Msg("archive bundled")
		name := "collection.zip"
		if req.CollectionID != "" {
			name = req.CollectionID + ".zip"
		}
		return Result{Archived: true, Filename: name, Files: len(files)}, nil
	}
}

// runBatch performs the single acquisition invocation covering all members.
func (a *Aggregator) runBatch(ctx context.Context, req Request, dir string, onLine func(string)) error {
	args := []string{
		"--ignore-errors",
		"--no-warnings",
		"--newline",
		"-f", req.FormatID,
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		"--retries", strconv.Itoa(a.flags.Retries),
		"--fragment-retries", strconv.Itoa(a.flags.FragmentRetries),
	}
	if a.flags.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if a.flags.SkipCertCheck {
		args = append(args, "--no-check-certificates")
	}
	for _, id := range req.MemberIDs {
		args = append(args, media.WatchURL(id))
	}

	_, err := a.inv.Run(ctx, args, nil, onLine)
	return err
}

// buildArchive bundles files into a single archive via the external
// archiving utility.
func (a *Aggregator) buildArchive(ctx context.Context, out string, files []string) error {
	args := append([]string{"-j", "-q", out}, files...)
	if _, err := a.archiver.Run(ctx, args, nil, nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn().Err(err).Msg("archive build failed")
		return download.NewFailure(download.ReasonArchive, "Bundling the collection into an archive failed.")
	}
	return nil
}

// usableFiles lists the non-empty regular files in dir, sorted by name.
func usableFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		// Skip the tool's in-progress artifacts.
		if strings.HasSuffix(e.Name(), ".part") || strings.HasSuffix(e.Name(), ".ytdl") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func streamFile(path string, sink io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := io.Copy(sink, f); err != nil {
		return fmt.Errorf("failed to stream %s: %w", filepath.Base(path), err)
	}
	return nil
}
