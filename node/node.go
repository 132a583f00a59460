package node

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/lra/nelson.cli/heart"
	"github.com/lra/nelson.cli/iri"
	"github.com/lra/nelson.cli/link"
	"github.com/lra/nelson.cli/peer"
)

// Config holds the tuning knobs a Node needs beyond its collaborators.
type Config struct {
	Self Self

	TargetConcurrency int     // desired number of OPEN links
	GossipSize        int     // peers advertised per hello/gossip
	ReshuffleFraction float64 // fraction of OPEN links closed each cycle

	BeatInterval  time.Duration
	CycleInterval time.Duration
	EpochInterval time.Duration

	DialTimeout time.Duration
	BeatTimeout time.Duration
}

// Self is this node's own advertised identity.
type Self struct {
	Hostname string
	Port     string
	TCPPort  string
	UDPPort  string
	Trusted  bool
}

func (s Self) identity() link.Identity {
	return link.Identity{Hostname: s.Hostname, Port: s.Port, TCPPort: s.TCPPort, UDPPort: s.UDPPort, Trusted: s.Trusted}
}

type linkEntry struct {
	link *link.Link
	peer *peer.Peer
}

// Node is the composer: it owns the live-link table and wires PeerList,
// IRIClient, and Heart together, enforcing the invariants that at most
// one link is OPEN per peer identity and that IRIClient's advertised
// neighbor set always matches the OPEN, non-static link set.
type Node struct {
	cfg   Config
	peers *peer.PeerList
	iri   *iri.Client
	heart *heart.Heart

	mu          sync.Mutex
	links       map[string]*linkEntry // keyed by peer.IdentityKey()
	advertised  map[string]bool       // UDP URIs currently pushed to IRI
	wasHealthy  bool
}

// New wires a Node around an already-constructed PeerList and IRIClient.
// The Node installs itself as the IRIClient's health callback.
func New(cfg Config, peers *peer.PeerList, iriClient *iri.Client) *Node {
	n := &Node{
		cfg:        cfg,
		peers:      peers,
		iri:        iriClient,
		links:      map[string]*linkEntry{},
		advertised: map[string]bool{},
	}
	n.heart = heart.New(heart.Config{
		BeatInterval:  cfg.BeatInterval,
		CycleInterval: cfg.CycleInterval,
		EpochInterval: cfg.EpochInterval,
	}, heart.Callbacks{
		OnBeat:  n.onBeat,
		OnCycle: n.onCycle,
		OnEpoch: n.onEpoch,
	})
	iriClient.SetHealthFunc(n.onHealth)
	return n
}

// Start begins ticking the Heart. Callers are responsible for calling
// IRIClient.Start first so static neighbors are known before any
// reconciliation happens.
func (n *Node) Start(ctx context.Context) {
	n.heart.Start(ctx)
}

// End stops the Heart and closes every open link.
func (n *Node) End() {
	n.heart.End()

	n.mu.Lock()
	entries := make([]*linkEntry, 0, len(n.links))
	for _, e := range n.links {
		entries = append(entries, e)
	}
	n.mu.Unlock()

	for _, e := range entries {
		e.link.Close("shutdown")
	}
}

// ConnectedPeers returns the peer identities behind every currently OPEN
// link, for consumption by the status API.
func (n *Node) ConnectedPeers() []*peer.Peer {
	n.mu.Lock()
	defer n.mu.Unlock()
	peers := make([]*peer.Peer, 0, len(n.links))
	for _, e := range n.links {
		if e.link.State() == link.Open {
			peers = append(peers, e.peer)
		}
	}
	return peers
}

// HeartSnapshot exposes the scheduler's counters to the status API.
func (n *Node) HeartSnapshot() heart.Snapshot {
	return n.heart.Snapshot()
}

// IRIHealthy reports whether the ledger RPC is currently healthy.
func (n *Node) IRIHealthy() bool {
	return n.iri.IsHealthy()
}

// Config returns the tuning knobs this Node was constructed with, for
// the status API's config echo.
func (n *Node) Config() Config {
	return n.cfg
}

// Listener returns an http.Handler that accepts inbound PeerLink
// connections on this node's control port.
func (n *Node) Listener() http.Handler {
	return &link.Listener{
		Self:     n.cfg.Self.identity(),
		Gossip:   n.gossipSample,
		OnGossip: n.onGossip,
		OnOpen:   n.onLinkOpened,
		OnClose:  n.onLinkClosed,
	}
}

func (n *Node) gossipSample() []link.Identity {
	sampled := n.peers.GetWeighted(n.cfg.GossipSize, nil)
	ids := make([]link.Identity, 0, len(sampled))
	for _, w := range sampled {
		ids = append(ids, identityFromPeer(w.Peer))
	}
	return ids
}

func identityFromPeer(p *peer.Peer) link.Identity {
	return link.Identity{
		Hostname: p.Hostname,
		Port:     p.Port,
		TCPPort:  p.TCPPort,
		UDPPort:  p.UDPPort,
		Trusted:  p.IsTrusted(),
	}
}

// onGossip feeds every identity learned over any link back into
// PeerList, making the advertising peer and each peer it mentioned a
// candidate for future cycles.
func (n *Node) onGossip(identities []link.Identity) {
	for _, id := range identities {
		if id.Hostname == "" {
			continue
		}
		if _, err := n.peers.Add(id.Hostname, id.Port, id.TCPPort, id.UDPPort, id.Trusted, 0); err != nil {
			logger.Warningf("node: failed to add gossiped peer %s: %s", id.Hostname, err)
		}
	}
}

func (n *Node) onLinkOpened(l *link.Link) {
	// Inbound links are attributed to a Peer once their identity is
	// known, which link.Accept records from the remote's nelson_hello --
	// but that hello isn't ordered against the acceptor's own handshake
	// reply, so OnOpen can fire a moment before RemoteIdentity is set.
	// Treat an empty hostname the same as onGossip does: skip it rather
	// than register a peer with nothing to dial back.
	id := l.RemoteIdentity()
	if id.Hostname == "" {
		logger.Debugf("node: inbound link opened before identity was known, closing")
		l.Close("no identity")
		return
	}
	p, err := n.peers.Add(id.Hostname, id.Port, id.TCPPort, id.UDPPort, id.Trusted, 0)
	if err != nil {
		logger.Warningf("node: failed to register inbound peer %s: %s", id.Hostname, err)
		l.Close("unregisterable peer")
		return
	}
	n.attachLink(p, l)
}

func (n *Node) onLinkClosed(l *link.Link, reason string) {
	n.mu.Lock()
	var key string
	var p *peer.Peer
	for k, e := range n.links {
		if e.link == l {
			key, p = k, e.peer
			break
		}
	}
	if key != "" {
		delete(n.links, key)
	}
	n.mu.Unlock()

	if p != nil {
		n.handleLinkClosed(p, reason)
	}
}

// handleLinkClosed records a failed/closed attempt against p and
// reconciles IRI's neighbor set. Used by both the inbound accept path
// (which must look the peer up by link pointer first) and the outbound
// dial path (which already knows p).
func (n *Node) handleLinkClosed(p *peer.Peer, reason string) {
	if err := n.peers.MarkTried(p); err != nil {
		logger.Warningf("node: failed to record tried for %s: %s", p.Hostname, err)
	}
	logger.Debugf("node: link to %s closed: %s", p.Hostname, reason)
	n.reconcileIRI()
}

// attachLink enforces invariant 1 (at most one OPEN link per identity):
// if a link is already attached for this peer, the new one is closed.
func (n *Node) attachLink(p *peer.Peer, l *link.Link) {
	key := p.IdentityKey()

	n.mu.Lock()
	if existing, ok := n.links[key]; ok && existing.link.State() == link.Open {
		n.mu.Unlock()
		l.Close("duplicate link for identity")
		return
	}
	n.links[key] = &linkEntry{link: l, peer: p}
	n.mu.Unlock()

	if err := n.peers.MarkConnected(p, 1.0); err != nil {
		logger.Warningf("node: failed to mark %s connected: %s", p.Hostname, err)
	}
	n.reconcileIRI()
}

// dialPeer opens an outbound link to p, attaching it on success.
func (n *Node) dialPeer(p *peer.Peer) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.DialTimeout)
	defer cancel()

	onClose := func(reason string) {
		n.mu.Lock()
		delete(n.links, p.IdentityKey())
		n.mu.Unlock()
		n.handleLinkClosed(p, reason)
	}

	l, err := link.Dial(ctx, p.ControlAddr(), n.cfg.Self.identity(), n.gossipSample, n.onGossip, onClose)
	if err != nil {
		logger.Debugf("node: dial %s failed: %s", p.Hostname, err)
		if mErr := n.peers.MarkTried(p); mErr != nil {
			logger.Warningf("node: failed to record tried for %s: %s", p.Hostname, mErr)
		}
		return
	}

	n.mu.Lock()
	n.links[p.IdentityKey()] = &linkEntry{link: l, peer: p}
	n.mu.Unlock()

	if err := n.peers.MarkConnected(p, 1.0); err != nil {
		logger.Warningf("node: failed to mark %s connected: %s", p.Hostname, err)
	}
	n.reconcileIRI()
}

// openReplacements samples up to count new candidate peers (excluding
// those already linked) and dials each one.
func (n *Node) openReplacements(count int) {
	if count <= 0 {
		return
	}

	n.mu.Lock()
	linked := make(map[string]bool, len(n.links))
	for k := range n.links {
		linked[k] = true
	}
	n.mu.Unlock()

	candidates := n.peers.All()
	pool := make([]*peer.Peer, 0, len(candidates))
	for _, p := range candidates {
		if !linked[p.IdentityKey()] {
			pool = append(pool, p)
		}
	}

	for _, w := range n.peers.GetWeighted(count, pool) {
		go n.dialPeer(w.Peer)
	}
}

// reconcileIRI enforces invariant 2: the set of UDP URIs advertised to
// IRI equals the OPEN, non-static links.
func (n *Node) reconcileIRI() {
	if !n.iri.IsHealthy() {
		return
	}

	n.mu.Lock()
	target := map[string]bool{}
	for _, e := range n.links {
		if e.link.State() != link.Open {
			continue
		}
		uri := e.peer.GetUDPURI()
		if n.iri.IsStaticNeighbor(e.peer.Hostname) {
			continue
		}
		target[uri] = true
	}
	current := n.advertised
	n.mu.Unlock()

	var toAdd, toRemove []string
	for uri := range target {
		if !current[uri] {
			toAdd = append(toAdd, uri)
		}
	}
	for uri := range current {
		if !target[uri] {
			toRemove = append(toRemove, uri)
		}
	}
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), iri.DefaultTimeout)
	defer cancel()
	if len(toRemove) > 0 {
		if _, err := n.iri.RemoveNeighbors(ctx, toRemove); err != nil {
			logger.Warningf("node: removeNeighbors failed: %s", err)
		}
	}
	if len(toAdd) > 0 {
		if _, err := n.iri.AddNeighbors(ctx, toAdd); err != nil {
			logger.Warningf("node: addNeighbors failed: %s", err)
		}
	}

	n.mu.Lock()
	n.advertised = target
	n.mu.Unlock()
}

// onHealth implements invariant 3: when IRIClient flips to healthy, an
// epoch reshuffle is scheduled immediately.
func (n *Node) onHealth(healthy bool, _ []string) {
	n.mu.Lock()
	flipped := healthy && !n.wasHealthy
	n.wasHealthy = healthy
	n.mu.Unlock()

	if flipped {
		logger.Infof("node: iri became healthy, triggering an immediate reshuffle")
		go n.onEpoch(context.Background(), -1, "")
	}
}

// onBeat implements invariant 4: every beat, each OPEN link is pinged,
// and if the node is under target concurrency it samples and dials as
// many replacements as it is short. Closed links leave the table through
// their own close handlers, not here.
func (n *Node) onBeat(ctx context.Context) {
	n.mu.Lock()
	entries := make([]*linkEntry, 0, len(n.links))
	for _, e := range n.links {
		entries = append(entries, e)
	}
	n.mu.Unlock()

	for _, e := range entries {
		if e.link.State() == link.Open {
			e.link.Beat(n.cfg.BeatTimeout)
		}
	}

	n.mu.Lock()
	openCount := 0
	for _, e := range n.links {
		if e.link.State() == link.Open {
			openCount++
		}
	}
	n.mu.Unlock()

	if deficit := n.cfg.TargetConcurrency - openCount; deficit > 0 {
		n.openReplacements(deficit)
	}
}

// onCycle performs a partial reshuffle: close the worst-performing
// (lowest-weight, non-trusted) fraction of OPEN links. It dials no
// replacements itself; the next onBeat sees the deficit and dials them
// via weighted sampling.
func (n *Node) onCycle(ctx context.Context, currentCycle int) {
	n.mu.Lock()
	var open []*linkEntry
	for _, e := range n.links {
		if e.link.State() == link.Open && !e.peer.IsTrusted() {
			open = append(open, e)
		}
	}
	n.mu.Unlock()

	toClose := int(float64(len(open)) * n.cfg.ReshuffleFraction)
	if toClose == 0 && len(open) > 0 && n.cfg.ReshuffleFraction > 0 {
		toClose = 1
	}
	sortByWeightAscending(open)
	for i := 0; i < toClose && i < len(open); i++ {
		open[i].link.Close("cycle reshuffle")
	}

	logger.Debugf("node: cycle %d closed %d link(s)", currentCycle, toClose)
}

// onEpoch performs a full reshuffle: every non-trusted link is closed
// and the link set is repopulated from scratch, then IRIClient's
// neighbor set is fully resynced via UpdateNeighbors.
func (n *Node) onEpoch(ctx context.Context, currentEpoch int, personality string) {
	n.mu.Lock()
	var toClose []*linkEntry
	for _, e := range n.links {
		if !e.peer.IsTrusted() {
			toClose = append(toClose, e)
		}
	}
	n.mu.Unlock()

	for _, e := range toClose {
		e.link.Close("epoch reshuffle")
	}

	n.openReplacements(n.cfg.TargetConcurrency)

	time.Sleep(n.cfg.DialTimeout)

	n.mu.Lock()
	uris := make([]string, 0, len(n.links))
	for _, e := range n.links {
		if e.link.State() != link.Open || n.iri.IsStaticNeighbor(e.peer.Hostname) {
			continue
		}
		uris = append(uris, e.peer.GetUDPURI())
	}
	n.mu.Unlock()

	if err := n.iri.UpdateNeighbors(ctx, uris); err != nil {
		logger.Warningf("node: epoch %d updateNeighbors failed: %s", currentEpoch, err)
		return
	}

	n.mu.Lock()
	target := map[string]bool{}
	for _, u := range uris {
		target[u] = true
	}
	n.advertised = target
	n.mu.Unlock()

	logger.Infof("node: epoch %d complete, personality=%s, %d neighbor(s)", currentEpoch, personality, len(uris))
}

// sortByWeightAscending orders entries by their peer's stored weight,
// lowest first, so onCycle evicts the worst-performing links.
func sortByWeightAscending(entries []*linkEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].peer.Weight < entries[j-1].peer.Weight; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
