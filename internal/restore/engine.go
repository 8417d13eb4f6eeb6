package restore

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent file operations when none is configured.
const DefaultWorkers = 8

// Result is the outcome of a restore. Errors holds one entry per file that
// was skipped, in input order.
type Result struct {
	Requested int      `json:"requested"`
	Copied    int      `json:"copied"`
	Errors    []string `json:"errors"`
}

// MissingItem is a file whose physical path could not be found.
type MissingItem struct {
	FileID      int64  `json:"file_id"`
	Hex         string `json:"hex"`
	CheckedPath string `json:"checked_path"`
	Reason      string `json:"reason"`
}

// VerifyResult is the outcome of a verify run.
type VerifyResult struct {
	Verified int           `json:"verified"`
	Failed   int           `json:"failed"`
	Missing  []MissingItem `json:"missing"`
}

// Engine runs restore and verify over a bounded worker pool.
type Engine struct {
	workers int
}

// NewEngine creates an Engine. workers <= 0 selects DefaultWorkers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{workers: workers}
}

// Restore copies every resolvable file in refs into sink. Per-file problems
// are collected in the result; Restore itself never fails.
func (e *Engine) Restore(ctx context.Context, refs []FileRef, sink Sink, rootOverride string) Result {
	errs := make([]string, len(refs))
	var copied atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ref := range refs {
		g.Go(func() error {
			if err := restoreOne(gctx, ref, sink, rootOverride); err != nil {
				errs[i] = err.Error()
				return nil
			}
			copied.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Requested: len(refs), Copied: int(copied.Load()), Errors: []string{}}
	for _, msg := range errs {
		if msg != "" {
			res.Errors = append(res.Errors, msg)
		}
	}
	return res
}

func restoreOne(ctx context.Context, ref FileRef, sink Sink, rootOverride string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", ref.label(), err)
	}

	loc, err := Resolve(ref, rootOverride)
	if err != nil {
		return err
	}
	name, err := DestinationName(ref)
	if err != nil {
		return err
	}

	src, err := os.Open(loc.Source)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: source not found: %s", ref.label(), loc.Source)
		}
		return fmt.Errorf("%s: %w", ref.label(), err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("%s: %w", ref.label(), err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: source is a directory: %s", ref.label(), loc.Source)
	}

	if err := sink.Put(ctx, name, src, info); err != nil {
		return fmt.Errorf("%s: copy to %s: %w", ref.label(), sink, err)
	}
	return nil
}

// Verify checks that each file in refs exists at its physical path. Every
// unresolvable or absent file yields a MissingItem, in input order.
func (e *Engine) Verify(ctx context.Context, refs []FileRef, rootOverride string) VerifyResult {
	missing := make([]*MissingItem, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ref := range refs {
		g.Go(func() error {
			missing[i] = verifyOne(gctx, ref, rootOverride)
			return nil
		})
	}
	_ = g.Wait()

	res := VerifyResult{Missing: []MissingItem{}}
	for _, m := range missing {
		if m == nil {
			res.Verified++
			continue
		}
		res.Failed++
		res.Missing = append(res.Missing, *m)
	}
	return res
}

func verifyOne(ctx context.Context, ref FileRef, rootOverride string) *MissingItem {
	loc, err := Resolve(ref, rootOverride)
	if err != nil {
		return &MissingItem{FileID: ref.ID, Hex: loc.Hex, CheckedPath: ref.EstimatedPath, Reason: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return &MissingItem{FileID: ref.ID, Hex: loc.Hex, CheckedPath: loc.Source, Reason: err.Error()}
	}

	info, err := os.Stat(loc.Source)
	switch {
	case err != nil:
		return &MissingItem{FileID: ref.ID, Hex: loc.Hex, CheckedPath: loc.Source, Reason: "not found"}
	case info.IsDir():
		return &MissingItem{FileID: ref.ID, Hex: loc.Hex, CheckedPath: loc.Source, Reason: "is a directory"}
	default:
		return nil
	}
}
