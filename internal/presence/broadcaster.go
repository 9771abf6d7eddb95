package presence

import (
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/pkg/log"
)

// Broadcaster pushes the authoritative online-user list to every open
// connection. Updates always carry the full list, never diffs, so clients
// have nothing to reconcile. Callers invoke Announce only on online/offline
// transitions of a logical user, not on every connect of a multi-device user.
type Broadcaster struct {
	hub *hub.Hub
}

func NewBroadcaster(h *hub.Hub) *Broadcaster {
	return &Broadcaster{hub: h}
}

// Announce fans the given online list out to every registered connection.
func (b *Broadcaster) Announce(onlineNames []string) {
	update := &domain.PresenceUpdateMessage{
		Type:   domain.MsgTypePresenceUpdate,
		Online: onlineNames,
	}

	clients := b.hub.Clients()
	for _, c := range clients {
		c.SendMessage(update)
	}

	l := log.L()
	l.Debug().Int("online", len(onlineNames)).Int("connections", len(clients)).Msg("presence update announced")
}
