package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lra/nelson.cli/jsonrpc2"
	"github.com/lra/nelson.cli/jsonrpc2/ws/gorilla"
)

// State is where a Link sits in the DIALING -> OPEN -> CLOSED machine.
type State int

const (
	Dialing State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Dialing:
		return "DIALING"
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Direction records which side originated the connection.
type Direction int

const (
	Out Direction = iota
	In
)

func (d Direction) String() string {
	if d == Out {
		return "OUT"
	}
	return "IN"
}

// GossipHandler is invoked with every identity a Link learns about,
// whether from the initial hello or a later gossip push.
type GossipHandler func(identities []Identity)

// maxMissedBeats is the number of consecutive missed heartbeats after
// which a Link is considered dead and transitions to CLOSED.
const maxMissedBeats = 3

// Link is a single bi-directional long-lived control-port session with
// one remote peer, carrying nelson_hello/nelson_gossip/nelson_ping calls
// over a jsonrpc2.Remote.
type Link struct {
	Direction Direction
	Self      Identity

	mu             sync.Mutex
	state          State
	remote         *jsonrpc2.Remote
	codec          jsonrpc2.Codec
	lastMessage    time.Time
	missedBeats    int
	pinging        bool
	remoteIdentity Identity

	gossip   func() []Identity
	onGossip GossipHandler
	onClose  func(reason string)
}

// Dial opens an outbound Link to a remote control port at addr
// ("host:port").
func Dial(ctx context.Context, addr string, self Identity, gossip func() []Identity, onGossip GossipHandler, onClose func(string)) (*Link, error) {
	url := fmt.Sprintf("ws://%s/", addr)
	codec, err := gorilla.WebSocketDial(ctx, url)
	if err != nil {
		return nil, err
	}
	return newLink(ctx, Out, codec, self, gossip, onGossip, onClose)
}

// Accept wraps an already-upgraded inbound codec into a new Link and
// performs the same handshake as Dial, just from the accepting side.
func Accept(ctx context.Context, codec jsonrpc2.Codec, self Identity, gossip func() []Identity, onGossip GossipHandler, onClose func(string)) (*Link, error) {
	return newLink(ctx, In, codec, self, gossip, onGossip, onClose)
}

func newLink(ctx context.Context, dir Direction, codec jsonrpc2.Codec, self Identity, gossip func() []Identity, onGossip GossipHandler, onClose func(string)) (*Link, error) {
	l := &Link{
		Direction: dir,
		Self:      self,
		state:     Dialing,
		codec:     codec,
		gossip:    gossip,
		onGossip:  onGossip,
		onClose:   onClose,
	}

	server := &jsonrpc2.Server{}
	if err := server.Register("nelson_", &handler{link: l}); err != nil {
		closeCodec(codec)
		return nil, err
	}
	l.remote = &jsonrpc2.Remote{
		Codec:  codec,
		Client: &jsonrpc2.Client{},
		Server: server,
	}

	go func() {
		if err := l.remote.Serve(); err != nil {
			l.close("serve: " + err.Error())
		}
	}()

	var reply HelloReply
	if err := l.remote.Call(ctx, &reply, "nelson_hello", self, l.gossipSample()); err != nil {
		l.close("handshake failed: " + err.Error())
		return nil, err
	}

	l.mu.Lock()
	l.state = Open
	l.lastMessage = time.Now()
	l.mu.Unlock()

	if len(reply.Peers) > 0 && l.onGossip != nil {
		l.onGossip(reply.Peers)
	}
	return l, nil
}

func (l *Link) gossipSample() []Identity {
	if l.gossip == nil {
		return nil
	}
	return l.gossip()
}

// State reports the Link's current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RemoteIdentity returns the identity the remote side advertised in its
// hello, which may be the zero value until one has been received.
func (l *Link) RemoteIdentity() Identity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remoteIdentity
}

// Beat sends a liveness ping, waiting up to timeout for the reply.
// The ping runs in its own goroutine so a caller driving a shared
// scheduler loop (see heart.Heart) is never blocked by an unresponsive
// peer; a Beat call while a previous ping is still outstanding is a
// no-op. If the remote fails to respond within timeout, consecutive
// misses are tallied; after maxMissedBeats the Link transitions to
// CLOSED with reason "timeout". Callers should pass beatInterval as
// timeout, so that maxMissedBeats consecutive misses take roughly
// maxMissedBeats*beatInterval to close a dead link, not some multiple
// of it.
func (l *Link) Beat(timeout time.Duration) {
	l.mu.Lock()
	if l.state != Open || l.pinging {
		l.mu.Unlock()
		return
	}
	l.pinging = true
	l.mu.Unlock()

	go l.ping(timeout)
}

func (l *Link) ping(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var reply PingReply
	err := l.remote.Call(ctx, &reply, "nelson_ping")

	l.mu.Lock()
	l.pinging = false
	if err != nil {
		l.missedBeats++
		miss := l.missedBeats
		l.mu.Unlock()
		if miss >= maxMissedBeats {
			l.close("timeout")
		}
		return
	}
	l.missedBeats = 0
	l.lastMessage = time.Now()
	l.mu.Unlock()
}

// PushGossip sends an unsolicited peer sample to the remote side.
func (l *Link) PushGossip(ctx context.Context, peers []Identity) error {
	if l.State() != Open {
		return fmt.Errorf("link: cannot gossip on a %s link", l.State())
	}
	var reply GossipReply
	return l.remote.Call(ctx, &reply, "nelson_gossip", peers)
}

// Close transitions the Link to CLOSED and releases its transport.
func (l *Link) Close(reason string) {
	l.close(reason)
}

func (l *Link) close(reason string) {
	l.mu.Lock()
	if l.state == Closed {
		l.mu.Unlock()
		return
	}
	l.state = Closed
	codec := l.codec
	l.mu.Unlock()

	closeCodec(codec)
	if l.onClose != nil {
		l.onClose(reason)
	}
}

func closeCodec(codec jsonrpc2.Codec) {
	if c, ok := codec.(interface{ Close() error }); ok {
		c.Close()
	}
}
