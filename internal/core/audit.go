package core

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/store"
)

// Operation names recorded in the ETL log.
const (
	OpImport  = "import"
	OpRestore = "restore"
	OpVerify  = "verify"
	OpExport  = "export"
)

// determineSeverity grades an operation outcome: any failure is an error,
// partial success is a warning.
func determineSeverity(failed, succeeded int) store.Severity {
	switch {
	case failed > 0 && succeeded == 0:
		return store.SeverityError
	case failed > 0:
		return store.SeverityWarn
	default:
		return store.SeverityInfo
	}
}

// logEvent writes an ETL log entry. Failures to log are reported but never
// fail the operation being logged.
func (s *Service) logEvent(ctx context.Context, op, detail string, affected int, sev store.Severity) {
	err := s.store.LogEvent(context.WithoutCancel(ctx), store.Event{
		Operation: op,
		Detail:    detail,
		Affected:  affected,
		Severity:  sev,
	})
	if err != nil {
		logging.FromContext(ctx).Error("failed to write etl log",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
	}
}
