// Package services contains server-side business logic: the ingestion and
// retrieval pipelines, the grant ledger, file management, and analytics.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/server/models"
	"github.com/genovault/genovault/internal/server/repositories/audit"
	"github.com/genovault/genovault/internal/server/repositories/profiles"
)

// resolveProfile maps a request principal to its profile. An unknown
// principal is an authentication failure, not a lookup miss.
func resolveProfile(ctx context.Context, repo profiles.Repository, principalID string) (*models.Profile, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	p, err := repo.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrInternal
	}
	return p, nil
}

// writeAudit appends an audit entry, swallowing failures. A logging outage
// must never block a legitimate read or write.
func writeAudit(ctx context.Context, repo audit.Repository, logger logging.Logger, entry *models.AuditEntry) {
	if err := repo.Append(ctx, entry); err != nil {
		logger.Error(ctx, "audit append failed",
			"actor_id", entry.ActorID, "action", entry.Action, "error", err)
	}
}

// mapDependencyErr converts a failed external call into the taxonomy error
// surfaced to callers: timeouts become ErrDependencyTimeout, everything else
// ErrStorageUnavailable. The original error is for logs only.
func mapDependencyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ErrDependencyTimeout
	}
	return common.ErrStorageUnavailable
}

// notifyAsync delivers a grantee notification off the critical path. The
// spawning request's context may already be cancelled, so delivery runs under
// its own deadline; failures are logged and dropped.
func notifyAsync(logger logging.Logger, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn(ctx, "notification delivery failed", "error", err)
		}
	}()
}
