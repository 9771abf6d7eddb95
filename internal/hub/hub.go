package hub

import (
	"errors"
	"sync"

	"github.com/driftchat/relay/pkg/log"
)

var (
	// ErrSessionUnbound is returned when a pending connection is registered.
	ErrSessionUnbound = errors.New("session has no bound identity")
	// ErrDuplicateConnection is returned when the same connection is
	// registered twice.
	ErrDuplicateConnection = errors.New("connection already registered")
	// ErrNameInUse is returned when the display name is held online by a
	// different user.
	ErrNameInUse = errors.New("display name already in use")
	// ErrNameMismatch is returned when an online user registers a connection
	// under a different display name than its active session. Accepting it
	// would leave the name index pointing at the old name while the new
	// connection sends under the new one.
	ErrNameMismatch = errors.New("display name differs from active session")
)

// RegistrationOutcome reports the effect of a register call.
type RegistrationOutcome struct {
	// IsNewUser is true when this was the user's first connection, i.e. the
	// user transitioned from offline to online.
	IsNewUser bool
}

// UnregistrationOutcome reports the effect of an unregister call.
type UnregistrationOutcome struct {
	// UserWentOffline is true when the user's last connection was removed.
	UserWentOffline bool
}

type userEntry struct {
	userID      string
	displayName string
	conns       map[string]*Client // connection ID -> client
}

// Hub is the session registry: the single source of truth for which logical
// users are online and which connections belong to them. One user may own
// several simultaneous connections; the user is online iff the set is
// non-empty. All mutations are atomic under the hub's lock, so no reader
// ever observes a user with zero connections or a connection counted under
// two users.
type Hub struct {
	mu     sync.RWMutex
	users  map[string]*userEntry // user ID -> entry
	byName map[string]string     // display name -> user ID
	byConn map[string]string     // connection ID -> user ID
	order  []string              // user IDs in first-seen registration order
}

func NewHub() *Hub {
	return &Hub{
		users:  make(map[string]*userEntry),
		byName: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register attaches a connection to its user's connection set, creating the
// user entry on the first connection. The connection's session must already
// carry a verified identity.
func (h *Hub) Register(client *Client) (RegistrationOutcome, error) {
	identity, ok := client.Session.Identity()
	if !ok {
		return RegistrationOutcome{}, ErrSessionUnbound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.byConn[client.ID]; exists {
		return RegistrationOutcome{}, ErrDuplicateConnection
	}
	if owner, taken := h.byName[identity.DisplayName]; taken && owner != identity.UserID {
		return RegistrationOutcome{}, ErrNameInUse
	}

	entry, online := h.users[identity.UserID]
	if online && entry.displayName != identity.DisplayName {
		return RegistrationOutcome{}, ErrNameMismatch
	}
	if !online {
		entry = &userEntry{
			userID:      identity.UserID,
			displayName: identity.DisplayName,
			conns:       make(map[string]*Client),
		}
		h.users[identity.UserID] = entry
		h.byName[identity.DisplayName] = identity.UserID
		h.order = append(h.order, identity.UserID)
	}
	entry.conns[client.ID] = client
	h.byConn[client.ID] = identity.UserID

	l := log.L()
	l.Debug().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUserID, identity.UserID).
		Str(log.FieldDisplayName, identity.DisplayName).
		Bool("first_connection", !online).
		Msg("connection registered")

	return RegistrationOutcome{IsNewUser: !online}, nil
}

// Unregister removes a connection from its user's set and deletes the user
// entry when the set becomes empty. Unknown connections are a no-op, so
// duplicate close events are tolerated.
func (h *Hub) Unregister(client *Client) UnregistrationOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.byConn[client.ID]
	if !ok {
		return UnregistrationOutcome{}
	}
	delete(h.byConn, client.ID)

	entry := h.users[userID]
	delete(entry.conns, client.ID)
	if len(entry.conns) > 0 {
		return UnregistrationOutcome{}
	}

	delete(h.users, userID)
	delete(h.byName, entry.displayName)
	for i, id := range h.order {
		if id == userID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	l := log.L()
	l.Debug().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUserID, userID).
		Msg("user went offline")

	return UnregistrationOutcome{UserWentOffline: true}
}

// OnlineDisplayNames returns a snapshot of online display names in the order
// the users first registered.
func (h *Hub) OnlineDisplayNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.order))
	for _, userID := range h.order {
		names = append(names, h.users[userID].displayName)
	}
	return names
}

// ClientsForDisplayName resolves a display name to every connection currently
// registered under it, for private-message fan-out. The result is empty when
// the name is not online.
func (h *Hub) ClientsForDisplayName(name string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userID, ok := h.byName[name]
	if !ok {
		return nil
	}
	entry := h.users[userID]
	clients := make([]*Client, 0, len(entry.conns))
	for _, c := range entry.conns {
		clients = append(clients, c)
	}
	return clients
}

// Clients returns a snapshot of every registered connection, for broadcast
// fan-out.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.byConn))
	for _, entry := range h.users {
		for _, c := range entry.conns {
			clients = append(clients, c)
		}
	}
	return clients
}

// OnlineUserCount reports the number of logical users currently online.
func (h *Hub) OnlineUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// Reset forcibly closes every registered connection and clears the registry.
// It returns the number of connections closed. Capability checks belong to
// the caller.
func (h *Hub) Reset() int {
	h.mu.Lock()
	var closing []*Client
	for _, entry := range h.users {
		for _, c := range entry.conns {
			closing = append(closing, c)
		}
	}
	h.users = make(map[string]*userEntry)
	h.byName = make(map[string]string)
	h.byConn = make(map[string]string)
	h.order = nil
	h.mu.Unlock()

	// Close outside the lock: closing triggers each connection's disconnect
	// path, which re-enters Unregister as a no-op.
	for _, c := range closing {
		c.Close()
	}

	l := log.L()
	l.Info().Int("connections", len(closing)).Msg("session registry reset")
	return len(closing)
}
