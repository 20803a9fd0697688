package agent

import (
	"errors"
	"log/slog"

	"SandwichAgent/internal/domain"
)

// ClassifyFailure maps a pipeline failure onto the recovery event that drives
// the machine out of error_recovery. Only failures explicitly tagged fatal end
// the session; everything else recovers toward the idle state so the loop can
// try again. Each classification emits one diagnostic log line.
func ClassifyFailure(err error, logger *slog.Logger) Event {
	if logger == nil {
		logger = slog.Default()
	}

	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		logger.Warn("unclassified pipeline failure", "error", err)
		return EventRecovered
	}

	switch perr.Kind {
	case domain.ErrorKindFatal:
		logger.Error("fatal pipeline failure", "reason", perr.Reason, "error", err)
		return EventFatal
	case domain.ErrorKindContent:
		logger.Warn("content failure", "reason", perr.Reason, "error", err)
		return EventRecovered
	case domain.ErrorKindParse:
		logger.Warn("parse failure", "reason", perr.Reason, "error", err)
		return EventRecovered
	case domain.ErrorKindRetryable:
		logger.Warn("retryable failure after exhausted retries", "reason", perr.Reason, "error", err)
		return EventRecovered
	default:
		logger.Warn("unknown failure kind", "kind", perr.Kind, "reason", perr.Reason, "error", err)
		return EventRecovered
	}
}
