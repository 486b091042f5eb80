// Package meow adapts go.mau.fi/whatsmeow to the messenger boundary.
package meow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3"

	"github.com/grupofy/grupofy-backend/internal/messenger"
	"github.com/grupofy/grupofy-backend/pkg/config"
	"github.com/grupofy/grupofy-backend/pkg/logger"
)

// Dialer opens whatsmeow sessions backed by a local sqlite auth store.
type Dialer struct {
	cfg  config.MessengerConfig
	logg *logger.Logger
}

// NewDialer builds a Dialer for the configured auth store path.
func NewDialer(cfg config.MessengerConfig, logg *logger.Logger) (*Dialer, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.AuthPath == "" {
		return nil, fmt.Errorf("messenger auth path is required")
	}
	return &Dialer{cfg: cfg, logg: logg}, nil
}

// Dial opens the auth store, builds a client, registers event plumbing and
// starts the connection handshake. Pairing progress and disconnects arrive
// through cb; the returned session is usable for roster reads once the
// Connected callback has fired.
func (d *Dialer) Dial(ctx context.Context, cb messenger.Callbacks) (messenger.Session, error) {
	if err := os.MkdirAll(filepath.Dir(d.cfg.AuthPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating auth store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", d.cfg.AuthPath)
	container, err := sqlstore.New("sqlite3", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("opening auth store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("loading device: %w", err)
	}

	client := whatsmeow.NewClient(device, waLog.Noop)
	// The connection manager owns the reconnect policy.
	client.EnableAutoReconnect = false

	sess := &session{client: client}
	client.AddEventHandler(func(evt any) { sess.handleEvent(ctx, cb, evt) })

	// The pairing channel only exists while the store has no identity;
	// once paired, Connect resumes the existing session directly.
	if client.Store.ID == nil {
		d.logg.Info(ctx, "no stored messenger identity, pairing required")
		qrChan, qrErr := client.GetQRChannel(ctx)
		if qrErr != nil {
			return nil, fmt.Errorf("opening pairing channel: %w", qrErr)
		}
		go func() {
			for item := range qrChan {
				if item.Event == "code" && cb.QRCode != nil {
					cb.QRCode(ctx, item.Code)
				}
			}
		}()
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connecting session: %w", err)
	}

	return sess, nil
}

type session struct {
	client *whatsmeow.Client
}

func (s *session) Identity() string {
	id := s.client.Store.ID
	if id == nil {
		return ""
	}
	return id.User
}

func (s *session) Groups(ctx context.Context) ([]messenger.GroupInfo, error) {
	joined, err := s.client.GetJoinedGroups()
	if err != nil {
		return nil, fmt.Errorf("listing joined groups: %w", err)
	}
	out := make([]messenger.GroupInfo, 0, len(joined))
	for _, g := range joined {
		out = append(out, messenger.GroupInfo{
			ID:               g.JID.String(),
			Name:             g.Name,
			ParticipantCount: len(g.Participants),
		})
	}
	return out, nil
}

func (s *session) Roster(ctx context.Context, groupID string) ([]messenger.Participant, error) {
	jid, err := types.ParseJID(groupID)
	if err != nil {
		return nil, fmt.Errorf("parsing group id %q: %w", groupID, err)
	}
	info, err := s.client.GetGroupInfo(jid)
	if err != nil {
		return nil, fmt.Errorf("fetching group info: %w", err)
	}
	out := make([]messenger.Participant, 0, len(info.Participants))
	for _, p := range info.Participants {
		out = append(out, toParticipant(p))
	}
	return out, nil
}

func (s *session) Disconnect() {
	s.client.Disconnect()
}

func (s *session) handleEvent(ctx context.Context, cb messenger.Callbacks, evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		if cb.CredentialsChanged != nil {
			cb.CredentialsChanged(ctx)
		}
		if cb.Connected != nil {
			cb.Connected(ctx, s.Identity())
		}

	case *events.PairSuccess:
		if cb.CredentialsChanged != nil {
			cb.CredentialsChanged(ctx)
		}

	case *events.LoggedOut:
		if cb.Disconnected != nil {
			cb.Disconnected(ctx, true, fmt.Errorf("logged out: %s", e.Reason))
		}

	case *events.Disconnected:
		if cb.Disconnected != nil {
			cb.Disconnected(ctx, false, nil)
		}

	case *events.StreamError:
		if cb.Disconnected != nil {
			cb.Disconnected(ctx, false, fmt.Errorf("stream error: %s", e.Code))
		}

	case *events.GroupInfo:
		if len(e.Join) == 0 || cb.ParticipantsAdded == nil {
			return
		}
		joined := make([]messenger.Participant, 0, len(e.Join))
		for _, jid := range e.Join {
			joined = append(joined, messenger.Participant{
				ID:     jid.String(),
				Phone:  phoneFromJID(jid),
				Opaque: jid.Server == types.HiddenUserServer,
			})
		}
		cb.ParticipantsAdded(ctx, e.JID.String(), joined)
	}
}

func toParticipant(p types.GroupParticipant) messenger.Participant {
	out := messenger.Participant{
		ID:      p.JID.String(),
		Name:    p.DisplayName,
		IsAdmin: p.IsAdmin || p.IsSuperAdmin,
		Opaque:  p.JID.Server == types.HiddenUserServer,
	}
	if !p.PhoneNumber.IsEmpty() {
		out.Phone = p.PhoneNumber.User
	} else if !out.Opaque {
		out.Phone = p.JID.User
	}
	return out
}

func phoneFromJID(jid types.JID) string {
	if jid.Server == types.HiddenUserServer {
		return ""
	}
	return jid.User
}
