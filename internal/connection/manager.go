package connection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/config"
	apperrors "github.com/grupofy/grupofy-backend/pkg/errors"
	"github.com/grupofy/grupofy-backend/pkg/logger"
	"github.com/grupofy/grupofy-backend/pkg/metrics"
	"github.com/grupofy/grupofy-backend/pkg/qr"
)

// State is the session lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateQR           State = "qr"
	StateConnected    State = "connected"
)

// Status is the operator-facing view of the session.
type Status struct {
	State    State  `json:"state"`
	QRImage  string `json:"qrImage,omitempty"`
	Identity string `json:"connectedIdentity,omitempty"`
}

// ParticipantsHandler receives group join events for the low-latency
// reconciliation path.
type ParticipantsHandler func(ctx context.Context, groupID string, joined []messenger.Participant)

// Manager owns the session lifecycle state machine. All state mutations are
// serialized behind one mutex; reconnects are scheduled with timers, never
// busy-waited, and a reconnect sequence is only superseded by an explicit
// disconnect or a successful connect.
type Manager struct {
	cfg     config.MessengerConfig
	dialer  messenger.Dialer
	creds   *CredentialStore
	logg    *logger.Logger
	metrics *metrics.DomainMetrics

	mu           sync.Mutex
	state        State
	qrImage      string
	identity     string
	session      messenger.Session
	attempt      int
	closing      bool
	retryTimer   *time.Timer
	participants ParticipantsHandler
}

// ManagerParams collects the manager dependencies.
type ManagerParams struct {
	Config      config.MessengerConfig
	Dialer      messenger.Dialer
	Credentials *CredentialStore
	Logger      *logger.Logger
	Metrics     *metrics.DomainMetrics
}

// NewManager validates dependencies and builds a Manager in the disconnected
// state.
func NewManager(p ManagerParams) (*Manager, error) {
	if p.Dialer == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if p.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{
		cfg:     p.Config,
		dialer:  p.Dialer,
		creds:   p.Credentials,
		logg:    p.Logger,
		metrics: p.Metrics,
		state:   StateDisconnected,
	}, nil
}

// SetParticipantsHandler wires the join-event consumer. Must be called before
// Connect; events arriving with no handler are dropped.
func (m *Manager) SetParticipantsHandler(fn ParticipantsHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants = fn
}

// Connect starts the session. No-op when already connected or mid-handshake.
// Dial failures never propagate: they are treated like an abnormal close and
// scheduled for a backoff retry, because Connect also runs at process start
// and must not take the host down.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting || m.state == StateQR {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.closing = false
	m.stopRetryLocked()
	m.mu.Unlock()

	if err := m.creds.Restore(ctx); err != nil {
		// Best effort: a failed restore degrades to fresh pairing.
		m.logg.Error(ctx, "credential restore failed", err)
	}

	session, err := m.dialer.Dial(ctx, messenger.Callbacks{
		CredentialsChanged: m.onCredentialsChanged,
		QRCode:             m.onQRCode,
		Connected:          m.onConnected,
		Disconnected:       m.onDisconnected,
		ParticipantsAdded:  m.onParticipantsAdded,
	})
	if err != nil {
		m.logg.Error(ctx, "messenger dial failed", err)
		m.mu.Lock()
		m.state = StateDisconnected
		m.scheduleReconnectLocked(ctx)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.closing {
		// Disconnect won the race while the dial was in flight; the fresh
		// session must not outlive it.
		m.mu.Unlock()
		session.Disconnect()
		return
	}
	m.session = session
	m.mu.Unlock()
}

// Disconnect terminates the session cleanly and cancels any pending retry.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	m.closing = true
	m.stopRetryLocked()
	session := m.session
	m.session = nil
	m.state = StateDisconnected
	m.qrImage = ""
	m.identity = ""
	m.attempt = 0
	m.mu.Unlock()

	if session != nil {
		session.Disconnect()
	}
	m.logg.Info(ctx, "messenger session disconnected")
}

// ForcePair drops the current session and credentials, then reconnects to
// trigger a fresh pairing challenge.
func (m *Manager) ForcePair(ctx context.Context) error {
	m.Disconnect(ctx)
	if err := m.creds.Wipe(ctx); err != nil {
		return err
	}
	m.Connect(ctx)
	return nil
}

// Status reports the current state snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{State: m.state}
	if m.state == StateQR {
		st.QRImage = m.qrImage
	}
	if m.state == StateConnected {
		st.Identity = m.identity
	}
	return st
}

// Session returns the live session, or a not-connected error for callers
// that require one (roster reads, member exports).
func (m *Manager) Session() (messenger.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.session == nil {
		return nil, apperrors.New(apperrors.CodeNotConnected, "messenger session is not connected")
	}
	return m.session, nil
}

func (m *Manager) onCredentialsChanged(ctx context.Context) {
	if err := m.creds.Backup(ctx); err != nil {
		m.logg.Error(ctx, "credential backup failed", err)
	}
}

func (m *Manager) onQRCode(ctx context.Context, code string) {
	image, err := qr.DataURL(code)
	if err != nil {
		m.logg.Error(ctx, "rendering pairing challenge failed", err)
		return
	}
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.state = StateQR
	m.qrImage = image
	m.mu.Unlock()
	m.logg.Info(ctx, "pairing challenge ready for scan")
}

func (m *Manager) onConnected(ctx context.Context, identity string) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.state = StateConnected
	m.identity = identity
	m.qrImage = ""
	m.attempt = 0
	m.stopRetryLocked()
	m.mu.Unlock()
	m.logg.Info(m.logg.WithField(ctx, "identity", identity), "messenger session connected")
}

func (m *Manager) onDisconnected(ctx context.Context, loggedOut bool, cause error) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.state = StateDisconnected
	m.qrImage = ""
	m.identity = ""

	if loggedOut {
		m.attempt = 0
		m.mu.Unlock()

		m.logg.Warn(ctx, "remote logout detected, wiping credentials")
		if err := m.creds.Wipe(ctx); err != nil {
			m.logg.Error(ctx, "credential wipe failed", err)
		}

		m.mu.Lock()
		m.retryTimer = time.AfterFunc(m.cfg.LogoutRetryDelay, func() { m.Connect(ctx) })
		m.mu.Unlock()
		return
	}

	if cause != nil {
		m.logg.Error(ctx, "messenger session closed", cause)
	} else {
		m.logg.Warn(ctx, "messenger session closed")
	}
	m.scheduleReconnectLocked(ctx)
	m.mu.Unlock()
}

func (m *Manager) onParticipantsAdded(ctx context.Context, groupID string, joined []messenger.Participant) {
	m.mu.Lock()
	handler := m.participants
	m.mu.Unlock()
	if handler != nil {
		handler(ctx, groupID, joined)
	}
}

// scheduleReconnectLocked arms the retry timer. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked(ctx context.Context) {
	if m.attempt >= m.cfg.MaxReconnectAttempts {
		m.logg.Error(ctx, "reconnect attempts exhausted, operator intervention required", nil)
		return
	}
	m.attempt++
	delay := m.nextDelay(m.attempt)
	m.metrics.IncReconnect()

	fields := map[string]any{"attempt": m.attempt, "delay": delay.String()}
	m.logg.Warn(m.logg.WithFields(ctx, fields), "scheduling messenger reconnect")

	m.stopRetryLocked()
	m.retryTimer = time.AfterFunc(delay, func() { m.Connect(ctx) })
}

// nextDelay grows geometrically: base * 1.5^(attempt-1), capped at the
// configured maximum.
func (m *Manager) nextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(m.cfg.ReconnectBase) * math.Pow(1.5, float64(attempt-1)))
	if delay > m.cfg.ReconnectMax {
		return m.cfg.ReconnectMax
	}
	return delay
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}
