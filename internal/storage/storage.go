package storage

import (
	"coachkit/training-engine/internal/domain"
	"context"
)

// SessionArchive stores immutable JSON snapshots of generated sessions in
// object storage. The archive is write-only from the engine's perspective and
// best-effort: a failed archive write never fails the assignment that
// produced the session.
type SessionArchive interface {
	// ArchiveSession writes the session snapshot and returns the object key
	// it was stored under.
	ArchiveSession(ctx context.Context, session *domain.GeneratedSession) (string, error)
}
