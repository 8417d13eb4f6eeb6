package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/ingest"
	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/jackc/pgx/v5/pgtype"
)

// ImportSource is an input file for an import. Name is the original file
// name and selects the format; Path may be a temporary copy, which is
// removed once the import ends when Temporary is set.
type ImportSource struct {
	Path      string
	Name      string
	Temporary bool
}

func (src ImportSource) name() string {
	if src.Name != "" {
		return src.Name
	}
	return src.Path
}

// cleanup removes a temporary source. It is safe to call more than once.
func (src ImportSource) cleanup(ctx context.Context) {
	if !src.Temporary || src.Path == "" {
		return
	}
	if err := os.Remove(src.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("failed to remove temporary import file",
			slog.String("path", src.Path),
			slog.String("error", err.Error()),
		)
	}
}

// ImportResult summarizes an import. While an import runs it is also the
// progress snapshot handed to progress callbacks.
type ImportResult struct {
	FileName  string         `json:"file_name"`
	Format    ingest.Format  `json:"format"`
	Encoding  string         `json:"encoding,omitempty"`
	Bytes     int64          `json:"bytes"`
	Kind      transform.Kind `json:"kind"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Inserted  int            `json:"inserted"`
	Skipped   int            `json:"skipped"`
	Batches   int            `json:"batches"`
	Duration  time.Duration  `json:"duration_ns"`
}

// progressFunc observes an import: once after parsing (Batches == 0) and
// after every committed batch.
type progressFunc func(ImportResult)

// Import runs a synchronous import of src. batchSize <= 0 selects the
// configured size. Batches committed before a failure stay committed.
func (s *Service) Import(ctx context.Context, src ImportSource, batchSize int) (ImportResult, error) {
	defer src.cleanup(ctx)

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{FileName: src.name()}, err
	}
	defer s.limiter.Release()

	return s.runImport(ctx, src, batchSize, nil)
}

// StartImport queues a background import of src and returns its job id.
// The job outlives ctx and runs without a deadline unless a job timeout is
// configured; its logger carries the job id. A temporary source
// is always removed before the job reaches a terminal state.
func (s *Service) StartImport(ctx context.Context, src ImportSource, batchSize int) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		src.cleanup(ctx)
		return "", err
	}

	job := s.jobs.Create(src.name())
	jobCtx := logging.WithJobID(context.WithoutCancel(ctx), job.ID)

	go func() {
		defer s.limiter.Release()

		runCtx := jobCtx
		if s.jobTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
			defer cancel()
		}

		s.jobs.start(job.ID)
		res, err := s.runJob(runCtx, job.ID, src, batchSize)
		src.cleanup(jobCtx)

		if err != nil {
			s.jobs.fail(job.ID, err)
			return
		}
		s.jobs.complete(job.ID, res)
	}()

	return job.ID, nil
}

// runJob runs the import behind a background job. A panic fails the job
// instead of the process.
func (s *Service) runJob(ctx context.Context, jobID string, src ImportSource, batchSize int) (res ImportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import panicked: %v", r)
			logging.FromContext(ctx).Error("import job panicked", slog.Any("panic", r))
			importRuns.WithLabelValues(string(JobError)).Inc()
		}
	}()

	return s.runImport(ctx, src, batchSize, func(p ImportResult) {
		if p.Batches == 0 {
			s.jobs.describe(jobID, p.Format, p.Kind, p.Total)
			return
		}
		s.jobs.advance(jobID, p.Processed, p.Inserted)
	})
}

// runImport ingests src, transforms it and writes it in batches.
func (s *Service) runImport(ctx context.Context, src ImportSource, batchSize int, progress progressFunc) (ImportResult, error) {
	start := time.Now()
	log := logging.FromContext(ctx).With(slog.String("file", src.name()))
	res := ImportResult{FileName: src.name()}

	recs, err := s.load(src, &res)
	if err != nil {
		log.Warn("import rejected", slog.String("error", err.Error()))
		s.logEvent(ctx, OpImport, fmt.Sprintf("%s: %v", res.FileName, err), 0, store.SeverityError)
		importRuns.WithLabelValues(string(JobError)).Inc()
		return res, err
	}
	if progress != nil {
		progress(res)
	}

	log.Info("import started",
		slog.String("format", string(res.Format)),
		slog.String("kind", string(res.Kind)),
		slog.Int("records", res.Total),
		slog.Int64("bytes", res.Bytes),
	)

	err = s.writeBatches(ctx, recs, batchSize, &res, progress)
	res.Skipped = res.Processed - res.Inserted
	res.Duration = time.Since(start)

	importedRecords.WithLabelValues(string(res.Kind), "inserted").Add(float64(res.Inserted))
	importedRecords.WithLabelValues(string(res.Kind), "skipped").Add(float64(res.Skipped))

	if err != nil {
		log.Error("import failed",
			slog.Int("processed", res.Processed),
			slog.Int("inserted", res.Inserted),
			slog.String("error", err.Error()),
		)
		s.logEvent(ctx, OpImport,
			fmt.Sprintf("%s: %d of %d %s inserted before failure: %v", res.FileName, res.Inserted, res.Total, res.Kind, err),
			res.Inserted, store.SeverityError)
		importRuns.WithLabelValues(string(JobError)).Inc()
		return res, err
	}

	log.Info("import completed",
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
		slog.Int("batches", res.Batches),
		slog.Duration("duration", res.Duration),
	)
	s.logEvent(ctx, OpImport,
		fmt.Sprintf("%s: %d of %d %s inserted, %d already present", res.FileName, res.Inserted, res.Total, res.Kind, res.Skipped),
		res.Inserted, store.SeverityInfo)
	importRuns.WithLabelValues(string(JobCompleted)).Inc()
	return res, nil
}

// load reads and transforms src, filling the descriptive fields of res.
func (s *Service) load(src ImportSource, res *ImportResult) (transform.Records, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return transform.Records{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	counter := ingest.NewCountingReader(f)
	table, err := ingest.Read(counter, src.name())
	res.Bytes = counter.BytesRead
	if err != nil {
		return transform.Records{}, err
	}
	res.Format = table.Format
	res.Encoding = table.Encoding

	recs, err := s.transformer.Transform(table)
	res.Kind = recs.Kind
	if err != nil {
		return recs, err
	}
	res.Total = recs.Len()
	return recs, nil
}

// writeBatches commits recs in transactions of batchSize records. The first
// failing batch is rolled back and ends the import.
func (s *Service) writeBatches(ctx context.Context, recs transform.Records, batchSize int, res *ImportResult, progress progressFunc) error {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	total := recs.Len()
	for lo := 0; lo < total; lo += batchSize {
		hi := min(lo+batchSize, total)

		began := time.Now()
		inserted, err := s.commitBatch(ctx, recs.Slice(lo, hi))
		batchDuration.Observe(time.Since(began).Seconds())
		if err != nil {
			return fmt.Errorf("batch %d (records %d-%d): %w", res.Batches+1, lo+1, hi, err)
		}

		res.Batches++
		res.Processed = hi
		res.Inserted += inserted
		if progress != nil {
			progress(*res)
		}
	}
	return nil
}

// commitBatch writes one batch in a single transaction and returns the
// number of new records. A record equal on its dedup key to a stored one is
// skipped. Each new document also gets its companion file.
func (s *Service) commitBatch(ctx context.Context, batch transform.Records) (int, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	inserted := 0
	// No-op once committed.
	defer tx.Rollback(context.WithoutCancel(ctx))

	switch batch.Kind {
	case transform.KindDocuments:
		for _, d := range batch.Documents {
			_, found, err := tx.FindDocument(ctx, d)
			if err != nil {
				return 0, err
			}
			if found {
				continue
			}
			id, err := tx.InsertDocument(ctx, d)
			if err != nil {
				return 0, err
			}
			inserted++
			if f, ok := d.Companion(); ok {
				if _, err := tx.InsertFile(ctx, f, pgtype.Int8{Int64: id, Valid: true}); err != nil {
					return 0, err
				}
			}
		}
	case transform.KindFiles:
		for _, f := range batch.Files {
			_, found, err := tx.FindFile(ctx, f)
			if err != nil {
				return 0, err
			}
			if found {
				continue
			}
			if _, err := tx.InsertFile(ctx, f, pgtype.Int8{}); err != nil {
				return 0, err
			}
			inserted++
		}
	default:
		return 0, transform.ErrUnknownKind
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
