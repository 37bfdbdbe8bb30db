package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/progress"
	"github.com/vidfetch/vidfetch/internal/runner"
)

// Engine tries each strategy in fixed order until one delivers the
// requested bytes. Only one strategy is ever active per request, and no
// fallback begins once cancellation is observed or any byte has already
// reached the caller's sink.
type Engine struct {
	inv            runner.Invoker
	strategies     []Strategy
	flags          config.DownloadConfig
	throttle       time.Duration
	attemptTimeout time.Duration
	logger         zerolog.Logger
}

// NewEngine creates an engine with the fixed strategy order:
// direct-stream, then file-buffered.
func NewEngine(inv runner.Invoker, flags config.DownloadConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		inv:            inv,
		strategies:     []Strategy{directStream{}, fileBuffered{}},
		flags:          flags,
		throttle:       500 * time.Millisecond,
		attemptTimeout: time.Duration(flags.AttemptTimeoutSeconds) * time.Second,
		logger:         logger.With().Str("component", "download").Logger(),
	}
}

// Validate checks the request against the resource's cached catalog without
// invoking any external process. A violation is an invalid-input failure,
// never a retryable one.
func (e *Engine) Validate(req Request, info *media.ResourceInfo) error {
	var chosen *media.FormatVariant
	for i := range info.Formats {
		if info.Formats[i].ID == req.FormatID {
			chosen = &info.Formats[i]
			break
		}
	}
	if chosen == nil {
		return invalidInput("unknown format id %q", req.FormatID)
	}
	if chosen.IsPlaceholder() {
		return invalidInput("format %q is a placeholder tier and cannot be downloaded", req.FormatID)
	}

	if (req.TrimStart == nil) != (req.TrimEnd == nil) {
		return invalidInput("trim requires both start and end")
	}
	if req.TrimStart != nil {
		if *req.TrimStart < 0 || *req.TrimEnd <= *req.TrimStart {
			return invalidInput("trim end must be greater than trim start")
		}
	}
	if req.CaptionFormat != "" && req.CaptionLang == "" {
		return invalidInput("caption format given without a caption language")
	}
	return nil
}

// Download validates the request and streams the selected format to sink.
// On terminal failure the returned error is a *Failure with a classified,
// user-facing reason. Bytes written to sink before a failure are valid
// partial data but must not be treated as a complete artifact.
func (e *Engine) Download(ctx context.Context, req Request, info *media.ResourceInfo, sink io.Writer, onEvent func(progress.Event)) error {
	if err := e.Validate(req, info); err != nil {
		return err
	}
	if onEvent == nil {
		onEvent = func(progress.Event) {}
	}

	commonArgs := e.buildArgs(req)
	url := media.WatchURL(req.ResourceID)

	// Once any byte reaches the sink the stream is committed to the current
	// attempt. A fallback would append a second artifact after the partial
	// bytes, so a dirty stream makes every failure terminal.
	metered := &meteredWriter{w: sink}

	var terminal *Failure
	for _, strat := range e.strategies {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		reporter := progress.NewReporter(strat.Name(), e.throttle, onEvent)

		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.attemptTimeout)
		}
		err := strat.Fetch(attemptCtx, e.inv, commonArgs, url, metered, reporter.Line)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			reporter.Finish()
			e.logger.Info().Str("resourceId", req.ResourceID).Str("strategy", strat.Name()).Msg("download complete")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		terminal = e.classifyAttempt(err)
		e.logger.Warn().
			Str("resourceId", req.ResourceID).
			Str("strategy", strat.Name()).
			Str("reason", string(terminal.Code)).
			Err(err).
			Msg("strategy attempt failed")

		if !terminal.Retryable() {
			return terminal
		}
		if metered.n > 0 {
			e.logger.Warn().
				Str("resourceId", req.ResourceID).
				Int64("bytesWritten", metered.n).
				Msg("sink already holds partial data, skipping fallback")
			return terminal
		}
	}
	if terminal == nil {
		terminal = newFailure(ReasonFailed, "The download failed. Please try again later.")
	}
	return terminal
}

// classifyAttempt converts an attempt error into a classified failure.
func (e *Engine) classifyAttempt(err error) *Failure {
	var exit *runner.ExitError
	switch {
	case errors.As(err, &exit):
		e.logger.Debug().Str("stderr", exit.Stderr).Msg("tool diagnostics")
		return classifyStderr(exit.Stderr)
	case errors.Is(err, runner.ErrToolNotFound):
		return newFailure(ReasonToolMissing, "The download tool is not installed on the server.")
	case errors.Is(err, errEmptyResult):
		return newFailure(ReasonFailed, "The download produced no data.")
	default:
		return newFailure(ReasonFailed, "The download failed. Please try again later.")
	}
}

// buildArgs assembles the per-attempt argument vector: format selector,
// optional trim and caption instructions, and the static resilience flags.
func (e *Engine) buildArgs(req Request) []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"-f", req.FormatID,
	}

	if req.TrimStart != nil && req.TrimEnd != nil {
		args = append(args, "--download-sections",
			fmt.Sprintf("*%d-%d", *req.TrimStart, *req.TrimEnd))
	}

	if req.CaptionLang != "" {
		args = append(args, "--write-subs", "--sub-langs", req.CaptionLang)
		if req.CaptionFormat != "" {
			args = append(args, "--convert-subs", req.CaptionFormat)
		}
	}

	return append(args, e.resilienceArgs()...)
}

// resilienceArgs is the static flag bundle carried by every invocation.
// Operator configuration, never user input.
func (e *Engine) resilienceArgs() []string {
	args := []string{
		"--retries", strconv.Itoa(e.flags.Retries),
		"--fragment-retries", strconv.Itoa(e.flags.FragmentRetries),
		"--concurrent-fragments", strconv.Itoa(e.flags.ConcurrentFragments),
	}
	if e.flags.BufferSize != "" {
		args = append(args, "--buffer-size", e.flags.BufferSize)
	}
	if e.flags.RateLimit != "" {
		args = append(args, "--limit-rate", e.flags.RateLimit)
	}
	if e.flags.ForceIPv4 {
		args = append(args, "--force-ipv4")
	}
	if e.flags.SkipCertCheck {
		args = append(args, "--no-check-certificates")
	}
	return args
}

// meteredWriter counts bytes forwarded to the underlying writer so the
// engine can tell whether a failed attempt left partial data behind.
type meteredWriter struct {
	w io.Writer
	n int64
}

func (m *meteredWriter) Write(p []byte) (int, error) {
	n, err := m.w.Write(p)
	m.n += int64(n)
	return n, err
}
