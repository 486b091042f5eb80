// Package messenger defines the boundary between the connection lifecycle and
// the concrete chat platform library. The rest of the service only sees these
// types, which keeps the platform swappable and the state machine testable.
package messenger

import "context"

// Participant is one roster entry as the platform reports it.
type Participant struct {
	// ID is the platform identifier. For regular entries its user part is
	// the phone number; for privacy-shielded entries it is an opaque token.
	ID string
	// Phone is the explicit phone number when the platform provides one
	// alongside an opaque ID. Empty otherwise.
	Phone string
	// Name is the display name the platform reports, empty when the
	// person has not set one or the platform withholds it.
	Name string
	// Opaque marks identifiers that cannot be resolved to a phone.
	Opaque  bool
	IsAdmin bool
}

// GroupInfo describes one group the connected account belongs to.
type GroupInfo struct {
	ID               string
	Name             string
	ParticipantCount int
}

// Callbacks receive session events. All fields are optional; nil callbacks
// are skipped. Handlers run on the platform library's event goroutine and
// must not block for long.
type Callbacks struct {
	// CredentialsChanged fires whenever the local auth store mutates, so
	// the durable backup can be refreshed.
	CredentialsChanged func(ctx context.Context)
	// QRCode fires with each pairing challenge emitted while unpaired.
	QRCode func(ctx context.Context, code string)
	// Connected fires once the session is open, with the account identity.
	Connected func(ctx context.Context, identity string)
	// Disconnected fires when the session closes. loggedOut distinguishes
	// an explicit remote logout from a transient network drop.
	Disconnected func(ctx context.Context, loggedOut bool, err error)
	// ParticipantsAdded fires when people join a group.
	ParticipantsAdded func(ctx context.Context, groupID string, joined []Participant)
}

// Session is a live platform connection.
type Session interface {
	// Identity returns the connected account identifier, empty until the
	// Connected callback has fired.
	Identity() string
	// Groups lists the groups the account currently belongs to.
	Groups(ctx context.Context) ([]GroupInfo, error)
	// Roster fetches the full participant list of one group.
	Roster(ctx context.Context, groupID string) ([]Participant, error)
	// Disconnect closes the session without touching credentials.
	Disconnect()
}

// Dialer opens sessions against the platform. Dial returns as soon as the
// connection handshake is underway; progress is reported via Callbacks.
type Dialer interface {
	Dial(ctx context.Context, cb Callbacks) (Session, error)
}
