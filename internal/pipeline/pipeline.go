package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/davesmith10/tvinterlace/internal/interlace"
	"github.com/davesmith10/tvinterlace/internal/pixbuf"
)

// Status is the outcome of one input file.
type Status int

const (
	StatusSaved   Status = iota
	StatusSkipped        // not a regular file, not a decodable JPEG, or cancelled
	StatusFailed         // decoded but could not be saved
)

func (s Status) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Options controls a batch run.
type Options struct {
	Suffix string       // inserted before the output file extension
	Jobs   int          // files processed concurrently, values < 1 mean 1
	Logger *slog.Logger // nil discards log output
}

// Result holds the outcome of one input file.
type Result struct {
	Input  string
	Output string
	Status Status
	Err    error
}

// OutputPath returns input with suffix inserted before its extension,
// e.g. "a/photo.jpg" -> "a/photo-interlaced.jpg".
func OutputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ext
}

// errLoad marks failures that happened before any output was attempted.
type errLoad struct{ err error }

func (e errLoad) Error() string { return "load: " + e.err.Error() }
func (e errLoad) Unwrap() error { return e.err }

// ProcessFile decodes in, interlaces it in place and encodes it to out.
func ProcessFile(in, out string) error {
	var buf pixbuf.Buffer
	if err := buf.Load(in); err != nil {
		return errLoad{err}
	}

	// Even rows are copied onto themselves, so the buffer serves as both source and destination.
	interlace.Apply(buf.Pixels(), buf.Width(), buf.Height(), buf.BytesPerPixel(), buf.Pixels())

	if err := buf.Save(out); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Run processes paths with at most opts.Jobs files in flight. Each file is
// handled start to finish by a single goroutine with its own buffer. A bad
// file never stops the batch; cancelling ctx stops new files from starting.
// Results are in the same order as paths.
func Run(ctx context.Context, paths []string, opts Options) []Result {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(max(opts.Jobs, 1))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Input: path, Status: StatusSkipped, Err: err}
			continue
		}
		i, path := i, path
		g.Go(func() error {
			results[i] = processOne(ctx, path, opts.Suffix, log)
			return nil
		})
	}
	g.Wait()

	return results
}

func processOne(ctx context.Context, path, suffix string, log *slog.Logger) Result {
	res := Result{Input: path}

	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusSkipped, err
		return res
	}

	fi, err := os.Stat(path)
	if err == nil && !fi.Mode().IsRegular() {
		err = fmt.Errorf("%s is not a regular file", path)
	}
	if err != nil {
		log.Warn("skipping", "path", path, "err", err)
		res.Status, res.Err = StatusSkipped, err
		return res
	}

	res.Output = OutputPath(path, suffix)
	log.Debug("processing", "path", path)

	err = ProcessFile(path, res.Output)
	switch {
	case err == nil:
		log.Info("saved", "output", res.Output)
		res.Status = StatusSaved
	case isLoadError(err):
		log.Warn("not a valid image, skipping", "path", path, "err", err)
		res.Status, res.Err = StatusSkipped, err
	default:
		log.Error("failed to save", "output", res.Output, "err", err)
		res.Status, res.Err = StatusFailed, err
	}
	return res
}

func isLoadError(err error) bool {
	var le errLoad
	return errors.As(err, &le)
}

// Summarize counts results by status.
func Summarize(results []Result) (saved, skipped, failed int) {
	for _, r := range results {
		switch r.Status {
		case StatusSaved:
			saved++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return saved, skipped, failed
}
