// Package runner invokes the external acquisition tool as a subprocess,
// streaming or capturing its stdout and scanning stderr for progress lines.
// The runner performs no retries; retry and fallback policy lives in the
// download engine.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// ErrToolNotFound is returned when the external executable cannot be
// resolved or spawned.
var ErrToolNotFound = errors.New("external tool not found")

// ExitError reports a non-zero tool exit, carrying the stderr tail used for
// error classification.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("tool exited with code %d", e.Code)
}

// Result describes one completed tool invocation.
type Result struct {
	ExitCode int
	Stdout   []byte // captured output; nil when a sink was supplied
	Stderr   string // bounded tail of diagnostic output
}

// Invoker is the subprocess contract the download engine and info service
// depend on. Tests substitute fakes; Runner is the real implementation.
type Invoker interface {
	// Run spawns the tool once with args. When sink is non-nil, stdout
	// bytes are written to it as they are produced; otherwise stdout is
	// captured into the result. Every stderr line is handed to onLine (may
	// be nil) in emission order.
	Run(ctx context.Context, args []string, sink io.Writer, onLine func(string)) (Result, error)
}

// Runner invokes a resolved executable. One OS process is created and
// destroyed per Run call.
type Runner struct {
	bin    string
	logger zerolog.Logger
}

// New resolves the named executable (explicit path first, then PATH, then
// platform-specific common locations) and returns a Runner for it.
func New(name, explicitPath string, logger zerolog.Logger) (*Runner, error) {
	bin := findExecutable(name, explicitPath)
	if bin == "" {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return &Runner{
		bin:    bin,
		logger: logger.With().Str("component", "runner").Str("tool", name).Logger(),
	}, nil
}

// Path returns the resolved executable path.
func (r *Runner) Path() string { return r.bin }

// Run implements Invoker.
func (r *Runner) Run(ctx context.Context, args []string, sink io.Writer, onLine func(string)) (Result, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)

	var stdout bytes.Buffer
	if sink != nil {
		cmd.Stdout = sink
	} else {
		cmd.Stdout = &stdout
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	r.logger.Debug().Strs("args", args).Msg("spawning tool")

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, r.bin)
		}
		return Result{}, fmt.Errorf("failed to spawn tool: %w", err)
	}

	tail := newTail(64)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		sc := bufio.NewScanner(stderrPipe)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			tail.add(line)
			if onLine != nil {
				onLine(line)
			}
		}
	}()

	<-scanDone
	waitErr := cmd.Wait()

	res := Result{Stderr: tail.String()}
	if sink == nil {
		res.Stdout = stdout.Bytes()
	}

	if waitErr != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			res.ExitCode = ee.ExitCode()
			r.logger.Debug().Int("exitCode", res.ExitCode).Msg("tool exited non-zero")
			return res, &ExitError{Code: res.ExitCode, Stderr: res.Stderr}
		}
		return res, fmt.Errorf("tool failed: %w", waitErr)
	}
	return res, nil
}

// tail retains the last n stderr lines for diagnostics and classification.
type tail struct {
	lines []string
	max   int
}

func newTail(max int) *tail {
	return &tail{max: max}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}

// findExecutable finds an executable by name or explicit path.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		commonPaths = []string{
			`C:\Program Files\` + name + `\` + name + ".exe",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
