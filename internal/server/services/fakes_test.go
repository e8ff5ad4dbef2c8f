package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

// testClock is a controllable time source shared by the service under test
// and the in-memory fakes.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// openTestDB returns a throwaway sqlite handle. The fakes never touch SQL;
// the handle only backs dbx.WithTx begin/commit calls.
func openTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("sql.Open error: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeTokensRepo is an in-memory credential store honoring the repository
// contract, timestamps driven by the shared test clock.
type fakeTokensRepo struct {
	mu       sync.Mutex
	clock    *testClock
	seq      int
	sessions map[string]*models.Token // value|purpose -> record
	codes    map[string]*models.Token // userID|purpose -> record

	createSessionErr error
}

func newFakeTokensRepo(clock *testClock) *fakeTokensRepo {
	return &fakeTokensRepo{
		clock:    clock,
		sessions: map[string]*models.Token{},
		codes:    map[string]*models.Token{},
	}
}

func (f *fakeTokensRepo) nextID() string {
	f.seq++
	return fmt.Sprintf("tok-%d", f.seq)
}

func sessionKey(value string, purpose models.TokenPurpose) string {
	return value + "|" + string(purpose)
}

func codeKey(userID string, purpose models.TokenPurpose) string {
	return userID + "|" + string(purpose)
}

func (f *fakeTokensRepo) CreateSession(ctx context.Context, userID string, value string, purpose models.TokenPurpose, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createSessionErr != nil {
		return f.createSessionErr
	}
	now := f.clock.Now()
	f.sessions[sessionKey(value, purpose)] = &models.Token{
		ID: f.nextID(), UserID: userID, Value: value, Purpose: purpose,
		Kind: models.KindSession, ExpiresAt: expiresAt, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (f *fakeTokensRepo) FindSession(ctx context.Context, value string, purpose models.TokenPurpose) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[sessionKey(value, purpose)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeTokensRepo) DeleteSession(ctx context.Context, value string, purpose models.TokenPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionKey(value, purpose)
	if _, ok := f.sessions[key]; !ok {
		return common.ErrorNotFound
	}
	delete(f.sessions, key)
	return nil
}

func (f *fakeTokensRepo) FindCodeForUpdate(ctx context.Context, userID string, purpose models.TokenPurpose) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.codes[codeKey(userID, purpose)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeTokensRepo) CreateCode(ctx context.Context, token *models.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	cp := *token
	cp.ID = f.nextID()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	f.codes[codeKey(token.UserID, token.Purpose)] = &cp
	return nil
}

func (f *fakeTokensRepo) ReplaceCode(ctx context.Context, id string, valueHash string, expiresAt time.Time, requestCount int, cooldownMinutes int, resetWindow bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findByIDLocked(id)
	if rec == nil {
		return common.ErrorNotFound
	}
	now := f.clock.Now()
	rec.Value = valueHash
	rec.ExpiresAt = expiresAt
	rec.RequestCount = requestCount
	rec.CooldownMinutes = cooldownMinutes
	if resetWindow {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return nil
}

func (f *fakeTokensRepo) SetCodeCooldown(ctx context.Context, id string, cooldownMinutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findByIDLocked(id)
	if rec == nil {
		return common.ErrorNotFound
	}
	rec.CooldownMinutes = cooldownMinutes
	rec.UpdatedAt = f.clock.Now()
	return nil
}

func (f *fakeTokensRepo) DeleteByID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, rec := range f.sessions {
		if rec.ID == id {
			delete(f.sessions, k)
			return nil
		}
	}
	for k, rec := range f.codes {
		if rec.ID == id {
			delete(f.codes, k)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeTokensRepo) findByIDLocked(id string) *models.Token {
	for _, rec := range f.sessions {
		if rec.ID == id {
			return rec
		}
	}
	for _, rec := range f.codes {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// codeRecord returns a copy of the active code record for inspection.
func (f *fakeTokensRepo) codeRecord(userID string, purpose models.TokenPurpose) *models.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.codes[codeKey(userID, purpose)]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// fakeUsersRepo is an in-memory user store.
type fakeUsersRepo struct {
	mu    sync.Mutex
	clock *testClock
	seq   int
	byID  map[string]*models.User
}

func newFakeUsersRepo(clock *testClock) *fakeUsersRepo {
	return &fakeUsersRepo{clock: clock, byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.seq++
	cp := *user
	cp.ID = fmt.Sprintf("user-%d", f.seq)
	cp.CreatedAt = f.clock.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = f.clock.Now()
	return nil
}

func (f *fakeUsersRepo) MarkEmailVerified(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = f.clock.Now()
	return nil
}

func (f *fakeUsersRepo) SetTwoFaEnabled(ctx context.Context, id string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.TwoFaEnabled = enabled
	u.UpdatedAt = f.clock.Now()
	return nil
}

// fakeManager hands the same fakes back regardless of the db handle.
type fakeManager struct {
	tokensRepo *fakeTokensRepo
	usersRepo  *fakeUsersRepo
}

func (m *fakeManager) Users(db dbx.DBTX) users.Repository   { return m.usersRepo }
func (m *fakeManager) Tokens(db dbx.DBTX) tokens.Repository { return m.tokensRepo }
func (m *fakeManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

// captureDeliverer records delivered messages.
type captureDeliverer struct {
	mu       sync.Mutex
	sent     []string
	dests    []string
	deliverE error
}

func (d *captureDeliverer) Deliver(ctx context.Context, destination string, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deliverE != nil {
		return d.deliverE
	}
	d.dests = append(d.dests, destination)
	d.sent = append(d.sent, message)
	return nil
}

func (d *captureDeliverer) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return ""
	}
	return d.sent[len(d.sent)-1]
}

func (d *captureDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}
