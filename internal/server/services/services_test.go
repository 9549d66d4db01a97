package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/genovault/genovault/internal/common"
	"github.com/genovault/genovault/internal/dbx"
	"github.com/genovault/genovault/internal/logging"
	"github.com/genovault/genovault/internal/ratelimit"
	sc "github.com/genovault/genovault/internal/server/config"
	"github.com/genovault/genovault/internal/server/models"
	auditrepo "github.com/genovault/genovault/internal/server/repositories/audit"
	filesrepo "github.com/genovault/genovault/internal/server/repositories/files"
	grantsrepo "github.com/genovault/genovault/internal/server/repositories/grants"
	profilesrepo "github.com/genovault/genovault/internal/server/repositories/profiles"
)

// --- shared fakes ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeProfilesRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
	getErr   error
}

func (f *fakeProfilesRepo) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfilesRepo) Create(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

type fakeFilesRepo struct {
	mu      sync.Mutex
	records map[string]*models.FileRecord

	createErr error
	getErr    error
}

func (f *fakeFilesRepo) Create(ctx context.Context, r *models.FileRecord) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	f.records[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	// Fresh byte slices per fetch, like a real driver scan.
	cp := *r
	cp.Key = append([]byte(nil), r.Key...)
	cp.IV = append([]byte(nil), r.IV...)
	return &cp, nil
}

func (f *fakeFilesRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FileRecord
	for _, r := range f.records {
		if r.OwnerID == ownerID {
			cp := r.Sanitized()
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) UpdateLedgerRef(ctx context.Context, id, ledgerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return common.ErrNotFound
	}
	r.LedgerRef = ledgerRef
	return nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeFilesRepo) CountByMediaType(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, r := range f.records {
		out[r.MediaType]++
	}
	return out, nil
}

type fakeGrantsRepo struct {
	mu     sync.Mutex
	grants map[string]*models.Grant

	createErr error
	findErr   error
	revokeErr error
}

func (f *fakeGrantsRepo) Create(ctx context.Context, g *models.Grant) (*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, ex := range f.grants {
		if ex.FileID == g.FileID && ex.GranteeID == g.GranteeID && ex.Status == models.GrantStatusActive {
			return nil, common.ErrAlreadyGranted
		}
	}
	g.ID = uuid.NewString()
	g.CreatedAt = time.Now()
	f.grants[g.ID] = g
	cp := *g
	return &cp, nil
}

func (f *fakeGrantsRepo) FindActive(ctx context.Context, fileID, granteeID string) (*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, g := range f.grants {
		if g.FileID == fileID && g.GranteeID == granteeID && g.Status == models.GrantStatusActive {
			cp := *g
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeGrantsRepo) Revoke(ctx context.Context, id, revokedBy, reason string, revokedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return f.revokeErr
	}
	g, ok := f.grants[id]
	if !ok || g.Status != models.GrantStatusActive {
		return common.ErrNoActiveGrant
	}
	g.Status = models.GrantStatusRevoked
	g.RevokedAt = &revokedAt
	g.RevokedBy = revokedBy
	g.RevokedReason = reason
	return nil
}

func (f *fakeGrantsRepo) ListByFile(ctx context.Context, fileID string) ([]*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Grant
	for _, g := range f.grants {
		if g.FileID == fileID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeGrantsRepo) ListByGrantee(ctx context.Context, granteeID string) ([]*models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Grant
	for _, g := range f.grants {
		if g.GranteeID == granteeID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeGrantsRepo) RevokeAllForFile(ctx context.Context, fileID, revokedBy, reason string, revokedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	var n int64
	for _, g := range f.grants {
		if g.FileID == fileID && g.Status == models.GrantStatusActive {
			g.Status = models.GrantStatusRevoked
			g.RevokedAt = &revokedAt
			g.RevokedBy = revokedBy
			g.RevokedReason = reason
			n++
		}
	}
	return n, nil
}

func (f *fakeGrantsRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int64{}
	for _, g := range f.grants {
		out[g.Status]++
	}
	return out, nil
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []*models.AuditEntry
	appendErr error
}

func (f *fakeAuditRepo) Append(ctx context.Context, e *models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAuditRepo) ListByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].ActorID == actorID {
			cp := *f.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// last returns the most recent entry matching action, or nil.
func (f *fakeAuditRepo) last(action string) *models.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Action == action {
			return f.entries[i]
		}
	}
	return nil
}

type fakeRepoManager struct {
	profiles *fakeProfilesRepo
	files    *fakeFilesRepo
	grants   *fakeGrantsRepo
	audit    *fakeAuditRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Profiles(db dbx.DBTX) profilesrepo.Repository { return m.profiles }
func (m *fakeRepoManager) Files(db dbx.DBTX) filesrepo.Repository { return m.files }
func (m *fakeRepoManager) Grants(db dbx.DBTX) grantsrepo.Repository { return m.grants }
func (m *fakeRepoManager) Audit(db dbx.DBTX) auditrepo.Repository { return m.audit }

type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	putErr error
	getErr error
	delErr error
}

func (s *memBlobStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *memBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.blobs[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *memBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.blobs, key)
	return nil
}

func (s *memBlobStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok
}

type memAnchor struct {
	mu       sync.Mutex
	payloads map[string]string
	seq      int

	submitErr error
	fetchErr  error
}

func (a *memAnchor) Submit(ctx context.Context, payload string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitErr != nil {
		return "", a.submitErr
	}
	a.seq++
	ref := fmt.Sprintf("0.0.1001/%d", a.seq)
	a.payloads[ref] = payload
	return ref, nil
}

func (a *memAnchor) Fetch(ctx context.Context, ref string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return "", a.fetchErr
	}
	p, ok := a.payloads[ref]
	if !ok {
		return "", common.ErrNotFound
	}
	return p, nil
}

func (a *memAnchor) submissions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq
}

// chanNotifier delivers events on a channel so tests can wait for the
// asynchronous notification goroutine.
type chanNotifier struct {
	ch  chan string
	err error
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan string, 8)}
}

func (n *chanNotifier) Notify(ctx context.Context, granteeID, event, fileID string) error {
	n.ch <- event + ":" + granteeID + ":" + fileID
	return n.err
}

func (n *chanNotifier) wait(t *testing.T) string {
	t.Helper()
	select {
	case e := <-n.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

type allowAllLimiter struct{}

func (allowAllLimiter) TryConsume(string, string, int, time.Duration) bool { return true }

type denyAllLimiter struct{}

func (denyAllLimiter) TryConsume(string, string, int, time.Duration) bool { return false }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- environment ---

const (
	ownerID      = "owner-1"
	researcherID = "researcher-1"
	analystID    = "analyst-1"
)

type testEnv struct {
	rm       *fakeRepoManager
	blobs    *memBlobStore
	anchor   *memAnchor
	notifier *chanNotifier
	cfg      *sc.Config

	ingest    *IngestService
	retrieve  *RetrieveService
	grantSvc  *GrantService
	fileSvc   *FileService
	analytics *AnalyticsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// The repositories are fakes; the connection only backs transaction
	// begin/commit in dbx.WithTx.
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rm := &fakeRepoManager{
		profiles: &fakeProfilesRepo{profiles: map[string]*models.Profile{
			ownerID:      {ID: ownerID, Email: "owner@example.com", Tier: models.TierDataOwner},
			researcherID: {ID: researcherID, Email: "res@example.com", Tier: models.TierResearcher},
			analystID:    {ID: analystID, Email: "ana@example.com", Tier: models.TierAnalyst},
		}},
		files:  &fakeFilesRepo{records: map[string]*models.FileRecord{}},
		grants: &fakeGrantsRepo{grants: map[string]*models.Grant{}},
		audit:  &fakeAuditRepo{},
	}
	blobs := &memBlobStore{blobs: map[string][]byte{}}
	anchor := &memAnchor{payloads: map[string]string{}}
	notifier := newChanNotifier()
	cfg := &sc.Config{
		MaxUploadBytes:       1 << 20,
		UploadLimitPerHour:   10,
		DownloadLimitPerHour: 20,
		GrantLimitPerDay:     50,
	}
	log := testLogger()
	var limiter ratelimit.Limiter = allowAllLimiter{}

	return &testEnv{
		rm:       rm,
		blobs:    blobs,
		anchor:   anchor,
		notifier: notifier,
		cfg:      cfg,

		ingest:    NewIngestService(db, rm, cfg, log, limiter, blobs, anchor),
		retrieve:  NewRetrieveService(db, rm, cfg, log, limiter, blobs, anchor),
		grantSvc:  NewGrantService(db, rm, cfg, log, limiter, notifier),
		fileSvc:   NewFileService(db, rm, log, blobs),
		analytics: NewAnalyticsService(db, rm, log),
	}
}

func (e *testEnv) upload(t *testing.T, content []byte) *models.FileRecord {
	t.Helper()
	rec, err := e.ingest.Upload(context.Background(), ownerID, "sample.txt", "text/plain", content)
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	return rec
}

func (e *testEnv) grant(t *testing.T, fileID string) *models.Grant {
	t.Helper()
	g, err := e.grantSvc.Grant(context.Background(), fileID, ownerID, researcherID, models.AccessLevelRead, nil)
	if err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	return g
}
