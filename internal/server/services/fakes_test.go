package services

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ilyakharev/authd/internal/dbx"
	"github.com/ilyakharev/authd/internal/logging"
	"github.com/ilyakharev/authd/internal/server/auth"
	"github.com/ilyakharev/authd/internal/server/config"
	"github.com/ilyakharev/authd/internal/server/models"
	refreshtokensrepo "github.com/ilyakharev/authd/internal/server/repositories/refreshtokens"
	"github.com/ilyakharev/authd/internal/server/repositories/repomanager"
	usersrepo "github.com/ilyakharev/authd/internal/server/repositories/users"
	verificationsrepo "github.com/ilyakharev/authd/internal/server/repositories/verifications"
)

// --- test doubles ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = 10 // keep the tests fast
	return cfg
}

func testIssuer(cfg *config.Config) *auth.Issuer {
	return auth.NewIssuer(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		[]byte(cfg.SetupTokenSecret),
		cfg.AccessTokenValidityDuration,
		cfg.RefreshTokenValidityDuration,
		cfg.SetupTokenValidityDuration,
	)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

type fakeUsersRepo struct {
	getOut *models.User
	getErr error

	createOut *models.User
	createErr error

	setPasswordAffected int64
	setPasswordErr      error
	setPasswordCalls    int

	verifiedIDs []string
}

func (f *fakeUsersRepo) Create(ctx context.Context, email string) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	return f.get()
}

func (f *fakeUsersRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return f.get()
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.get()
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.get()
}

func (f *fakeUsersRepo) MarkVerified(ctx context.Context, id string) error {
	f.verifiedIDs = append(f.verifiedIDs, id)
	return nil
}

func (f *fakeUsersRepo) SetPassword(ctx context.Context, id string, passwordHash string) (int64, error) {
	f.setPasswordCalls++
	if f.setPasswordErr != nil {
		return 0, f.setPasswordErr
	}
	return f.setPasswordAffected, nil
}

func (f *fakeUsersRepo) get() (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type otpCreate struct {
	userID    string
	otpHash   string
	expiresAt time.Time
}

type fakeVerificationsRepo struct {
	latest    *models.EmailVerification
	latestErr error

	retriesOut int
	retriesErr error

	created        []otpCreate
	invalidatedIDs []string
	usedIDs        []string
}

func (f *fakeVerificationsRepo) Create(ctx context.Context, userID string, otpHash string, expiresAt time.Time) error {
	f.created = append(f.created, otpCreate{userID: userID, otpHash: otpHash, expiresAt: expiresAt})
	return nil
}

func (f *fakeVerificationsRepo) LatestForUserForUpdate(ctx context.Context, userID string) (*models.EmailVerification, error) {
	return f.getLatest()
}

func (f *fakeVerificationsRepo) LatestByEmailForUpdate(ctx context.Context, email string) (*models.EmailVerification, error) {
	return f.getLatest()
}

func (f *fakeVerificationsRepo) InvalidateActive(ctx context.Context, userID string) error {
	f.invalidatedIDs = append(f.invalidatedIDs, userID)
	return nil
}

func (f *fakeVerificationsRepo) IncrementRetries(ctx context.Context, id string) (int, error) {
	if f.retriesErr != nil {
		return 0, f.retriesErr
	}
	return f.retriesOut, nil
}

func (f *fakeVerificationsRepo) MarkUsed(ctx context.Context, id string, otpHash string) error {
	f.usedIDs = append(f.usedIDs, id)
	return nil
}

func (f *fakeVerificationsRepo) getLatest() (*models.EmailVerification, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

type tokenCreate struct {
	jti       string
	userID    string
	tokenHash string
}

type fakeRefreshTokensRepo struct {
	findOut *models.RefreshToken
	findErr error

	createErr error
	delErr    error

	created []tokenCreate
	deleted []string
}

func (f *fakeRefreshTokensRepo) Create(ctx context.Context, jti, userID, tokenHash string, expiresAt time.Time) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, tokenCreate{jti: jti, userID: userID, tokenHash: tokenHash})
	return nil
}

func (f *fakeRefreshTokensRepo) Find(ctx context.Context, jti string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshTokensRepo) Delete(ctx context.Context, jti string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, jti)
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	v *fakeVerificationsRepo
	r *fakeRefreshTokensRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{},
		v: &fakeVerificationsRepo{},
		r: &fakeRefreshTokensRepo{},
	}
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }
func (m *fakeRepoManager) Verifications(db dbx.DBTX) verificationsrepo.Repository {
	return m.v
}
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)

// fakeSender records sends on channels so tests can wait for the
// fire-and-forget goroutines.
type fakeSender struct {
	codes      chan string
	registered chan string
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		codes:      make(chan string, 8),
		registered: make(chan string, 8),
	}
}

func (f *fakeSender) SendVerificationCode(ctx context.Context, email, code string) error {
	f.codes <- code
	return nil
}

func (f *fakeSender) SendAlreadyRegistered(ctx context.Context, email string) error {
	f.registered <- email
	return nil
}

func (f *fakeSender) waitCode(t *testing.T) string {
	t.Helper()
	select {
	case code := <-f.codes:
		return code
	case <-time.After(2 * time.Second):
		t.Fatalf("no verification email sent")
		return ""
	}
}

func (f *fakeSender) waitRegistered(t *testing.T) string {
	t.Helper()
	select {
	case email := <-f.registered:
		return email
	case <-time.After(2 * time.Second):
		t.Fatalf("no already-registered email sent")
		return ""
	}
}

func (f *fakeSender) assertNoMail(t *testing.T) {
	t.Helper()
	select {
	case code := <-f.codes:
		t.Fatalf("unexpected verification email with code %q", code)
	case email := <-f.registered:
		t.Fatalf("unexpected already-registered email to %q", email)
	case <-time.After(50 * time.Millisecond):
	}
}
