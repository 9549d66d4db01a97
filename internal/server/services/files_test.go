package services

import (
	"context"
	"errors"
	"testing"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/server/models"
)

func TestFileList(t *testing.T) {
	e := newTestEnv(t)
	e.upload(t, []byte("one"))
	e.upload(t, []byte("two"))

	list, err := e.fileSvc.List(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("want 2 records, got %d", len(list))
	}
	for _, r := range list {
		if r.Key != nil || r.IV != nil {
			t.Fatalf("listing leaks key material: %+v", r)
		}
	}

	empty, err := e.fileSvc.List(context.Background(), researcherID)
	if err != nil || len(empty) != 0 {
		t.Fatalf("researcher list: %d records, err=%v", len(empty), err)
	}
}

func TestFileGet(t *testing.T) {
	e := newTestEnv(t)
	rec := e.upload(t, []byte("x"))

	got, err := e.fileSvc.Get(context.Background(), ownerID, rec.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != rec.ID || got.Key != nil || got.IV != nil {
		t.Fatalf("bad record: %+v", got)
	}

	// A grant allows content download, not metadata browsing.
	if _, err := e.fileSvc.Get(context.Background(), researcherID, rec.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("non-owner get: want ErrForbidden, got %v", err)
	}
}

func TestFileDelete(t *testing.T) {
	e := newTestEnv(t)
	rec := e.upload(t, []byte("doomed"))
	e.grant(t, rec.ID)
	e.notifier.wait(t)

	if err := e.fileSvc.Delete(context.Background(), ownerID, rec.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if e.blobs.has(rec.StorageKey) {
		t.Fatal("blob survived deletion")
	}
	if _, err := e.rm.files.GetByID(context.Background(), rec.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("record survived deletion: %v", err)
	}
	gs, _ := e.rm.grants.ListByFile(context.Background(), rec.ID)
	for _, g := range gs {
		if g.Status == models.GrantStatusActive {
			t.Fatalf("active grant survived deletion: %+v", g)
		}
	}
	entry := e.rm.audit.last(models.AuditActionDelete)
	if entry == nil || entry.Outcome != models.AuditOutcomeSuccess {
		t.Fatalf("bad audit entry: %+v", entry)
	}
}

func TestFileDelete_Authorization(t *testing.T) {
	e := newTestEnv(t)
	rec := e.upload(t, []byte("x"))
	e.grant(t, rec.ID)
	e.notifier.wait(t)

	// A grantee can read the file, never delete it.
	if err := e.fileSvc.Delete(context.Background(), researcherID, rec.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("grantee delete: want ErrForbidden, got %v", err)
	}

	if err := e.fileSvc.Delete(context.Background(), ownerID, "no-such"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing file: want ErrNotFound, got %v", err)
	}
}

func TestFileDelete_RevokeFailureKeepsRecord(t *testing.T) {
	e := newTestEnv(t)
	rec := e.upload(t, []byte("still here"))
	e.grant(t, rec.ID)
	e.notifier.wait(t)
	e.rm.grants.revokeErr = errBoom{}

	// Revocation and record deletion commit together; a revoke failure
	// aborts the whole delete.
	if err := e.fileSvc.Delete(context.Background(), ownerID, rec.ID); !errors.Is(err, common.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
	if _, err := e.rm.files.GetByID(context.Background(), rec.ID); err != nil {
		t.Fatalf("record must survive an aborted delete: %v", err)
	}
	gs, _ := e.rm.grants.ListByFile(context.Background(), rec.ID)
	if len(gs) != 1 || gs[0].Status != models.GrantStatusActive {
		t.Fatalf("grant must survive an aborted delete: %+v", gs)
	}
}

func TestFileDelete_BlobOutageStillDeletesRecord(t *testing.T) {
	e := newTestEnv(t)
	rec := e.upload(t, []byte("orphan me"))
	e.blobs.delErr = errBoom{}

	if err := e.fileSvc.Delete(context.Background(), ownerID, rec.ID); err != nil {
		t.Fatalf("blob outage must not block record deletion: %v", err)
	}
	if _, err := e.rm.files.GetByID(context.Background(), rec.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatal("record survived deletion")
	}
}
