package core

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/restore"
	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/minio/minio-go/v7"
)

// DefaultBatchSize is the number of records committed per transaction.
const DefaultBatchSize = 500

// VaultSettings are the runtime settings of restore, verify and export.
// Values stored in the settings table take precedence over these.
type VaultSettings struct {
	Root               string `json:"vault_root"`
	UseHexPadding      bool   `json:"use_hex_padding"`
	AddFVExtension     bool   `json:"add_fv_extension"`
	DefaultDestination string `json:"default_destination"`
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	BatchSize      int
	MaxConcurrent  int
	AcquireTimeout time.Duration
	Workers        int
	Vault          VaultSettings

	// JobTimeout bounds a background import. Zero means no limit.
	JobTimeout time.Duration

	// Objects enables s3:// restore destinations when non-nil.
	Objects      *minio.Client
	ObjectRegion string

	Transformer *transform.Transformer
}

// currentLimiter backs the active_imports gauge.
var currentLimiter atomic.Pointer[ImportLimiter]

// Service provides import, restore and verify on top of a Store.
type Service struct {
	store       store.Store
	transformer *transform.Transformer
	engine      *restore.Engine
	limiter     *ImportLimiter
	jobs        *JobRegistry

	batchSize    int
	jobTimeout   time.Duration
	defaults     VaultSettings
	objects      *minio.Client
	objectRegion string
}

// NewService creates a Service. jobs is owned by the caller, which closes
// it at shutdown.
func NewService(st store.Store, jobs *JobRegistry, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	tr := opts.Transformer
	if tr == nil {
		tr = transform.New(transform.Mappings{})
	}
	if jobs == nil {
		jobs = NewJobRegistry()
	}

	limiter := NewImportLimiter(opts.MaxConcurrent, opts.AcquireTimeout)
	currentLimiter.Store(limiter)

	return &Service{
		store:        st,
		transformer:  tr,
		engine:       restore.NewEngine(opts.Workers),
		limiter:      limiter,
		jobs:         jobs,
		batchSize:    opts.BatchSize,
		jobTimeout:   opts.JobTimeout,
		defaults:     opts.Vault,
		objects:      opts.Objects,
		objectRegion: opts.ObjectRegion,
	}
}

// Jobs returns the registry of background imports.
func (s *Service) Jobs() *JobRegistry { return s.jobs }

// Limiter returns the import limiter.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// Store returns the underlying store.
func (s *Service) Store() store.Store { return s.store }

// Settings resolves the vault settings: stored values override the
// configured defaults. Unparseable stored booleans are ignored.
func (s *Service) Settings(ctx context.Context) (VaultSettings, error) {
	out := s.defaults

	lookup := func(key string) (string, bool, error) {
		v, ok, err := s.store.Setting(ctx, key)
		if err != nil || !ok {
			return "", false, err
		}
		return strings.TrimSpace(v), true, nil
	}
	flag := func(key string, dst *bool) error {
		v, ok, err := lookup(key)
		if err != nil || !ok {
			return err
		}
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			logging.FromContext(ctx).Warn("ignoring invalid setting", slog.String("key", key), slog.String("value", v))
			return nil
		}
		*dst = b
		return nil
	}

	if v, ok, err := lookup(store.SettingVaultRoot); err != nil {
		return out, err
	} else if ok && v != "" {
		out.Root = v
	}
	if v, ok, err := lookup(store.SettingDefaultDestination); err != nil {
		return out, err
	} else if ok && v != "" {
		out.DefaultDestination = v
	}
	if err := flag(store.SettingUseHexPadding, &out.UseHexPadding); err != nil {
		return out, err
	}
	if err := flag(store.SettingAddFVExtension, &out.AddFVExtension); err != nil {
		return out, err
	}
	return out, nil
}

// Health checks the store connection.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns table counts.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

// Events returns recent ETL log events, optionally filtered by operation.
func (s *Service) Events(ctx context.Context, operation string, limit int) ([]store.Event, error) {
	return s.store.Events(ctx, operation, limit)
}

// MissingItems returns missing items with the given status.
func (s *Service) MissingItems(ctx context.Context, status store.MissingStatus, limit int) ([]store.MissingItem, error) {
	return s.store.MissingItems(ctx, status, limit)
}
