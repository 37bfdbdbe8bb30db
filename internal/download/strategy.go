package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vidfetch/vidfetch/internal/runner"
)

// Strategy is one concrete method of obtaining the selected format's bytes.
// Implementations receive the fully built common argument vector and append
// their own output instructions.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, inv runner.Invoker, commonArgs []string, url string, sink io.Writer, onLine func(string)) error
}

// directStream instructs the tool to write the payload straight to stdout,
// piped to the caller as produced. Lowest latency, most exposed to upstream
// throttling.
type directStream struct{}

func (directStream) Name() string { return "direct-stream" }

func (directStream) Fetch(ctx context.Context, inv runner.Invoker, commonArgs []string, url string, sink io.Writer, onLine func(string)) error {
	args := append(append([]string{}, commonArgs...), "-o", "-", url)
	_, err := inv.Run(ctx, args, sink, onLine)
	return err
}

// fileBuffered has the tool write into a private temporary directory, then
// streams the finished file to the caller. Slower to first byte, more
// robust against streaming interruptions.
type fileBuffered struct{}

func (fileBuffered) Name() string { return "file-buffered" }

func (fileBuffered) Fetch(ctx context.Context, inv runner.Invoker, commonArgs []string, url string, sink io.Writer, onLine func(string)) (err error) {
	dir, err := os.MkdirTemp("", "vidfetch-*")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	template := filepath.Join(dir, "download.%(ext)s")
	args := append(append([]string{}, commonArgs...), "-o", template, url)

	if _, err := inv.Run(ctx, args, nil, onLine); err != nil {
		return err
	}

	path, err := singleResult(dir)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open downloaded file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(sink, f); err != nil {
		return fmt.Errorf("failed to stream downloaded file: %w", err)
	}
	return nil
}

// singleResult locates the downloaded file in dir, rejecting empty or
// missing results as an attempt failure.
func singleResult(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to enumerate working directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		return filepath.Join(dir, e.Name()), nil
	}
	return "", errEmptyResult
}
