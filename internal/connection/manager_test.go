package connection

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/db/models"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

type fakeRepo struct {
	mu      sync.Mutex
	payload []byte
	deleted bool
}

func (r *fakeRepo) Get(ctx context.Context, sessionID string) (*models.MessengerCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payload == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.MessengerCredential{SessionID: sessionID, Payload: r.payload}, nil
}

func (r *fakeRepo) Upsert(ctx context.Context, sessionID string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = payload
	r.deleted = false
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = nil
	r.deleted = true
	return nil
}

type fakeSession struct {
	mu           sync.Mutex
	disconnected bool
}

func (s *fakeSession) Identity() string { return "5511999990000" }
func (s *fakeSession) Groups(ctx context.Context) ([]messenger.GroupInfo, error) {
	return nil, nil
}
func (s *fakeSession) Roster(ctx context.Context, groupID string) ([]messenger.Participant, error) {
	return nil, nil
}
func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
}

type fakeDialer struct {
	mu    sync.Mutex
	calls int
	cb    messenger.Callbacks
	sess  *fakeSession
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, cb messenger.Callbacks) (messenger.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.cb = cb
	if d.err != nil {
		return nil, d.err
	}
	d.sess = &fakeSession{}
	return d.sess, nil
}

func (d *fakeDialer) dialCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) callbacks() messenger.Callbacks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb
}

func newTestManager(t *testing.T, dialer messenger.Dialer) (*Manager, *fakeRepo, config.MessengerConfig) {
	t.Helper()
	cfg := config.MessengerConfig{
		AuthPath:             filepath.Join(t.TempDir(), "auth.db"),
		SessionID:            "primary",
		BackupEnabled:        true,
		ReconnectBase:        10 * time.Millisecond,
		ReconnectMax:         40 * time.Millisecond,
		MaxReconnectAttempts: 3,
		LogoutRetryDelay:     5 * time.Millisecond,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	repo := &fakeRepo{}
	creds, err := NewCredentialStore(cfg, repo, logg)
	require.NoError(t, err)
	mgr, err := NewManager(ManagerParams{
		Config:      cfg,
		Dialer:      dialer,
		Credentials: creds,
		Logger:      logg,
	})
	require.NoError(t, err)
	return mgr, repo, cfg
}

func TestManagerConnectTransitions(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, _, _ := newTestManager(t, dialer)

	assert.Equal(t, StateDisconnected, mgr.Status().State)

	mgr.Connect(ctx)
	assert.Equal(t, 1, dialer.dialCalls())
	assert.Equal(t, StateConnecting, mgr.Status().State)

	cb := dialer.callbacks()
	cb.QRCode(ctx, "challenge-payload")
	st := mgr.Status()
	assert.Equal(t, StateQR, st.State)
	assert.NotEmpty(t, st.QRImage)

	cb.Connected(ctx, "5511999990000")
	st = mgr.Status()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, "5511999990000", st.Identity)
	assert.Empty(t, st.QRImage)

	// connect is a no-op while connected
	mgr.Connect(ctx)
	assert.Equal(t, 1, dialer.dialCalls())
}

func TestManagerSessionRequiresConnected(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, _, _ := newTestManager(t, dialer)

	_, err := mgr.Session()
	require.Error(t, err)
	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.CodeNotConnected, appErr.Code())

	mgr.Connect(ctx)
	dialer.callbacks().Connected(ctx, "id")
	sess, err := mgr.Session()
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestManagerDisconnectClearsState(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, _, _ := newTestManager(t, dialer)

	mgr.Connect(ctx)
	dialer.callbacks().Connected(ctx, "id")
	mgr.Disconnect(ctx)

	st := mgr.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Empty(t, st.Identity)
	assert.True(t, dialer.sess.disconnected)
}

// gatedDialer holds the dial open until released, so tests can interleave
// other manager calls with an in-flight dial.
type gatedDialer struct {
	fakeDialer
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, cb messenger.Callbacks) (messenger.Session, error) {
	<-d.release
	return d.fakeDialer.Dial(ctx, cb)
}

func TestManagerDisconnectDuringDialDiscardsSession(t *testing.T) {
	ctx := context.Background()
	dialer := &gatedDialer{release: make(chan struct{})}
	mgr, _, _ := newTestManager(t, dialer)

	done := make(chan struct{})
	go func() {
		mgr.Connect(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return mgr.Status().State == StateConnecting
	}, time.Second, time.Millisecond)

	mgr.Disconnect(ctx)
	close(dialer.release)
	<-done

	assert.Equal(t, StateDisconnected, mgr.Status().State)
	dialer.mu.Lock()
	sess := dialer.sess
	dialer.mu.Unlock()
	require.NotNil(t, sess)
	sess.mu.Lock()
	closed := sess.disconnected
	sess.mu.Unlock()
	assert.True(t, closed, "a session dialed after disconnect must be closed")
	_, err := mgr.Session()
	require.Error(t, err)
}

func TestManagerIgnoresLateCallbacksAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, _, _ := newTestManager(t, dialer)

	mgr.Connect(ctx)
	mgr.Disconnect(ctx)

	cb := dialer.callbacks()
	cb.QRCode(ctx, "stale-challenge")
	assert.Equal(t, StateDisconnected, mgr.Status().State)

	cb.Connected(ctx, "stale-identity")
	st := mgr.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Empty(t, st.Identity)
}

func TestManagerTransientDropSchedulesReconnect(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, _, _ := newTestManager(t, dialer)

	mgr.Connect(ctx)
	dialer.callbacks().Connected(ctx, "id")
	dialer.callbacks().Disconnected(ctx, false, nil)

	require.Eventually(t, func() bool {
		return dialer.dialCalls() >= 2
	}, time.Second, 5*time.Millisecond, "expected a reconnect dial")
}

func TestManagerLogoutWipesCredentialsAndRetries(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, repo, cfg := newTestManager(t, dialer)

	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("auth"), 0o600))
	repo.payload = []byte("auth")

	mgr.Connect(ctx)
	dialer.callbacks().Connected(ctx, "id")
	dialer.callbacks().Disconnected(ctx, true, assert.AnError)

	require.Eventually(t, func() bool {
		return dialer.dialCalls() >= 2
	}, time.Second, 5*time.Millisecond, "expected a fresh connect after logout")

	repo.mu.Lock()
	deleted := repo.deleted
	repo.mu.Unlock()
	assert.True(t, deleted, "backup row should be deleted on logout")
	_, statErr := os.Stat(cfg.AuthPath)
	assert.True(t, os.IsNotExist(statErr), "local auth store should be wiped on logout")
}

func TestManagerGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{err: assert.AnError}
	mgr, _, cfg := newTestManager(t, dialer)

	mgr.Connect(ctx)

	// Every dial fails; the retry chain stops once attempts are exhausted.
	require.Eventually(t, func() bool {
		return dialer.dialCalls() == cfg.MaxReconnectAttempts+1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(3 * cfg.ReconnectMax)
	assert.Equal(t, cfg.MaxReconnectAttempts+1, dialer.dialCalls())
	assert.Equal(t, StateDisconnected, mgr.Status().State)
}

func TestManagerNextDelay(t *testing.T) {
	dialer := &fakeDialer{}
	mgr, _, cfg := newTestManager(t, dialer)

	base := cfg.ReconnectBase
	assert.Equal(t, base, mgr.nextDelay(1))
	assert.Equal(t, time.Duration(float64(base)*1.5), mgr.nextDelay(2))
	assert.Equal(t, time.Duration(float64(base)*2.25), mgr.nextDelay(3))
	assert.Equal(t, cfg.ReconnectMax, mgr.nextDelay(50))
}

func TestManagerForcePairWipesAndReconnects(t *testing.T) {
	ctx := context.Background()
	dialer := &fakeDialer{}
	mgr, repo, cfg := newTestManager(t, dialer)

	require.NoError(t, os.WriteFile(cfg.AuthPath, []byte("auth"), 0o600))
	mgr.Connect(ctx)
	dialer.callbacks().Connected(ctx, "id")

	require.NoError(t, mgr.ForcePair(ctx))
	assert.Equal(t, 2, dialer.dialCalls())

	repo.mu.Lock()
	deleted := repo.deleted
	repo.mu.Unlock()
	assert.True(t, deleted)
}
