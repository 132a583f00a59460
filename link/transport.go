package link

import (
	"net/http"

	"github.com/lra/nelson.cli/jsonrpc2/ws/gorilla"
)

// Listener upgrades inbound HTTP connections on the control port into
// accepted Links.
type Listener struct {
	upgrader gorilla.Upgrader
	Self     Identity
	Gossip   func() []Identity
	OnGossip GossipHandler
	OnOpen   func(*Link)
	OnClose  func(*Link, string)
}

// ServeHTTP upgrades the request to a websocket and completes the
// nelson_hello handshake as the accepting side.
func (s *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	codec, err := s.upgrader.Upgrade(r, w, nil)
	if err != nil {
		logger.Debugf("link: upgrade failed from %s: %s", r.RemoteAddr, err)
		return
	}

	var l *Link
	onClose := func(reason string) {
		if s.OnClose != nil {
			s.OnClose(l, reason)
		}
	}

	l, err = Accept(r.Context(), codec, s.Self, s.Gossip, s.OnGossip, onClose)
	if err != nil {
		logger.Debugf("link: handshake failed from %s: %s", r.RemoteAddr, err)
		return
	}
	if s.OnOpen != nil {
		s.OnOpen(l)
	}
}
