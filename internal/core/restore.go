package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/objectstore"
	"github.com/JonMunkholm/vaultetl/internal/restore"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/JonMunkholm/vaultetl/internal/transform"
)

var (
	// ErrEmptySelection is returned when a restore or verify names no files.
	ErrEmptySelection = errors.New("no files selected")
	// ErrNoDestination is returned when neither the request nor the
	// settings name a restore destination.
	ErrNoDestination = errors.New("no restore destination")
	// ErrObjectStoreDisabled is returned for s3:// destinations without a
	// configured object store.
	ErrObjectStoreDisabled = errors.New("object store destination requested but storage is not configured")
)

// RestoreRequest selects files to restore and where to put them. Empty
// Destination and VaultRoot fall back to the settings.
type RestoreRequest struct {
	FileIDs     []int64 `json:"file_ids"`
	Destination string  `json:"destination"`
	VaultRoot   string  `json:"vault_root"`
}

// VerifyRequest selects files to verify.
type VerifyRequest struct {
	FileIDs   []int64 `json:"file_ids"`
	VaultRoot string  `json:"vault_root"`
}

// Restore copies the selected files out of the vault. Per-file failures,
// including ids with no stored file, are reported in the result.
func (s *Service) Restore(ctx context.Context, req RestoreRequest) (restore.Result, error) {
	if len(req.FileIDs) == 0 {
		return restore.Result{}, ErrEmptySelection
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return restore.Result{}, err
	}

	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest = settings.DefaultDestination
	}
	if dest == "" {
		return restore.Result{}, ErrNoDestination
	}
	sink, err := s.sink(ctx, dest)
	if err != nil {
		return restore.Result{}, err
	}

	refs, notFound, err := s.fileRefs(ctx, req.FileIDs)
	if err != nil {
		return restore.Result{}, err
	}

	root := rootOverride(req.VaultRoot, settings)
	res := s.engine.Restore(ctx, refs, sink, root)
	res.Requested += len(notFound)
	for _, id := range notFound {
		res.Errors = append(res.Errors, fmt.Sprintf("file %d: not found", id))
	}

	failed := res.Requested - res.Copied
	restoredFiles.WithLabelValues("copied").Add(float64(res.Copied))
	restoredFiles.WithLabelValues("failed").Add(float64(failed))

	logging.FromContext(ctx).Info("restore finished",
		slog.String("destination", sink.String()),
		slog.Int("requested", res.Requested),
		slog.Int("copied", res.Copied),
		slog.Int("failed", failed),
	)
	s.logEvent(ctx, OpRestore,
		fmt.Sprintf("restored %d of %d files to %s", res.Copied, res.Requested, sink),
		res.Copied, determineSeverity(failed, res.Copied))

	return res, nil
}

// Verify checks that the selected files exist in the vault and records
// every missing one as a PENDING missing item.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (restore.VerifyResult, error) {
	if len(req.FileIDs) == 0 {
		return restore.VerifyResult{}, ErrEmptySelection
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return restore.VerifyResult{}, err
	}

	refs, notFound, err := s.fileRefs(ctx, req.FileIDs)
	if err != nil {
		return restore.VerifyResult{}, err
	}

	res := s.engine.Verify(ctx, refs, rootOverride(req.VaultRoot, settings))

	items := make([]store.MissingItem, 0, len(res.Missing))
	for _, m := range res.Missing {
		items = append(items, store.MissingItem{
			FileID:      m.FileID,
			Hex:         m.Hex,
			CheckedPath: m.CheckedPath,
			Status:      store.MissingPending,
		})
	}
	if err := s.store.InsertMissingItems(ctx, items); err != nil {
		return res, fmt.Errorf("record missing items: %w", err)
	}

	// Unknown ids have no file row to reference, so they are only reported.
	for _, id := range notFound {
		res.Failed++
		res.Missing = append(res.Missing, restore.MissingItem{FileID: id, Reason: "file not found"})
	}

	verifiedFiles.WithLabelValues("present").Add(float64(res.Verified))
	verifiedFiles.WithLabelValues("missing").Add(float64(res.Failed))

	logging.FromContext(ctx).Info("verify finished",
		slog.Int("verified", res.Verified),
		slog.Int("missing", res.Failed),
	)
	s.logEvent(ctx, OpVerify,
		fmt.Sprintf("verified %d files, %d missing", res.Verified, res.Failed),
		res.Failed, verifySeverity(res.Failed))

	return res, nil
}

// verifySeverity reports any missing file as an error.
func verifySeverity(missing int) store.Severity {
	if missing > 0 {
		return store.SeverityError
	}
	return store.SeverityInfo
}

// sink opens the restore destination: an object store bucket for s3://
// destinations, a local directory otherwise.
func (s *Service) sink(ctx context.Context, dest string) (restore.Sink, error) {
	bucket, prefix, ok := objectstore.ParseDestination(dest)
	if !ok {
		return restore.NewDirSink(dest)
	}
	if s.objects == nil {
		return nil, ErrObjectStoreDisabled
	}
	return objectstore.NewSink(ctx, s.objects, bucket, prefix, s.objectRegion)
}

// fileRefs loads the files for ids, preserving request order. Ids with no
// stored file are returned separately.
func (s *Service) fileRefs(ctx context.Context, ids []int64) ([]restore.FileRef, []int64, error) {
	files, err := s.store.FilesByID(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]store.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	refs := make([]restore.FileRef, 0, len(ids))
	var notFound []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		f, ok := byID[id]
		if !ok {
			notFound = append(notFound, id)
			continue
		}
		refs = append(refs, fileRef(f))
	}
	return refs, notFound, nil
}

func fileRef(f store.File) restore.FileRef {
	return restore.FileRef{
		ID:            f.ID,
		Hex:           transform.TextValue(f.Hex),
		VaultRoot:     transform.TextValue(f.VaultRoot),
		EstimatedPath: transform.TextValue(f.EstimatedPath),
		OriginalName:  transform.TextValue(f.OriginalName),
		Filename:      transform.TextValue(f.Filename),
		InternalName:  transform.TextValue(f.InternalName),
	}
}

// rootOverride is the request root, else the configured vault root.
func rootOverride(requested string, settings VaultSettings) string {
	if r := strings.TrimSpace(requested); r != "" {
		return r
	}
	return settings.Root
}
