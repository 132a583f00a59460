package link

import (
	"context"
	"time"
)

// Identity is what a Link advertises about itself on hello, and what it
// gossips about peers it has learned of. It is the wire shape of a
// peer.Peer, stripped down to what the other side needs to call
// PeerList.add/findByAddress against.
type Identity struct {
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	TCPPort  string `json:"TCPPort"`
	UDPPort  string `json:"UDPPort"`
	Trusted  bool   `json:"trusted"`
}

// HelloReply is returned by nelson_hello: the remote's own sample of
// known peers, sent back symmetrically to the hello that triggered it.
type HelloReply struct {
	Peers []Identity `json:"peers"`
}

// GossipReply acknowledges a nelson_gossip push.
type GossipReply struct {
	Received int `json:"received"`
}

// PingReply acknowledges a liveness beat.
type PingReply struct{}

// handler is the jsonrpc2 receiver registered on every Link under the
// "nelson_" prefix, producing the nelson_hello / nelson_gossip /
// nelson_ping wire methods.
type handler struct {
	link *Link
}

// Hello handles an inbound hello: record the caller's identity and feed
// its gossiped peers to the configured handler, then reply with our own
// sample of known peers.
func (h *handler) Hello(ctx context.Context, identity Identity, peers []Identity) (*HelloReply, error) {
	l := h.link
	l.mu.Lock()
	l.remoteIdentity = identity
	l.lastMessage = time.Now()
	l.mu.Unlock()

	if l.onGossip != nil {
		l.onGossip(append([]Identity{identity}, peers...))
	}

	return &HelloReply{Peers: l.gossipSample()}, nil
}

// Gossip handles an unsolicited peer-list push outside of the initial
// handshake.
func (h *handler) Gossip(ctx context.Context, peers []Identity) (*GossipReply, error) {
	l := h.link
	l.mu.Lock()
	l.lastMessage = time.Now()
	l.mu.Unlock()

	if l.onGossip != nil {
		l.onGossip(peers)
	}
	return &GossipReply{Received: len(peers)}, nil
}

// Ping handles a liveness beat from the remote side.
func (h *handler) Ping(ctx context.Context) (*PingReply, error) {
	h.link.mu.Lock()
	h.link.lastMessage = time.Now()
	h.link.mu.Unlock()
	return &PingReply{}, nil
}
