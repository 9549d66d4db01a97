package models

import "time"

// Audit actions recorded by the pipelines.
const (
	AuditActionUpload   = "upload"
	AuditActionDownload = "download"
	AuditActionDelete   = "delete"
	AuditActionGrant    = "grant"
	AuditActionRevoke   = "revoke"
)

// Audit outcomes.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditEntry is an append-only record of a file or grant operation. Writes
// are best-effort: a logging outage must never block a legitimate operation.
type AuditEntry struct {
	ID        string
	ActorID   string
	Action    string
	FileID    string
	Outcome   string
	Detail    string
	CreatedAt time.Time
}
