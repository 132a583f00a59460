package peer

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// PeerList is the persistent, in-memory-indexed collection of every Peer
// Nelson knows about. It exclusively owns every Peer it holds: callers
// never mutate a *Peer directly, they call a PeerList method, which
// updates memory and the backing Store together.
type PeerList struct {
	mu sync.Mutex

	store    Store
	isMaster bool
	multiPort bool

	peers map[docID]*Peer
}

// NewPeerList constructs an empty PeerList backed by store. Call load to
// populate it from disk and seed the configured default peers.
func NewPeerList(store Store, isMaster, multiPort bool) *PeerList {
	return &PeerList{
		store:     store,
		isMaster:  isMaster,
		multiPort: multiPort,
		peers:     map[docID]*Peer{},
	}
}

// load reads every record from the store into memory, then upserts each
// of defaultURIs as a trusted peer with weight 1.0. It is idempotent:
// calling it again re-applies the same defaults without duplicating
// peers already present.
func (l *PeerList) load(defaultURIs []string) error {
	l.mu.Lock()
	docs, err := l.store.All()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	l.peers = make(map[docID]*Peer, len(docs))
	for _, d := range docs {
		l.peers[d.ID] = d.toPeer()
	}
	l.mu.Unlock()

	for _, raw := range defaultURIs {
		u, err := parseDefaultURI(raw)
		if err != nil {
			return err
		}
		if _, err := l.add(u.Hostname, u.Port, u.TCPPort, u.UDPPort, true, 1.0); err != nil {
			return err
		}
	}
	return nil
}

// add normalizes the given address and either inserts a new Peer or
// updates the matching existing one: a port mismatch is only applied
// when multiPort is off, and weight is only ever raised, never lowered.
// A port that does not parse as an integer is rejected with an error and
// nothing is changed.
func (l *PeerList) add(hostname, port, tcpPort, udpPort string, isTrusted bool, weight float64) (*Peer, error) {
	for _, p := range []string{port, tcpPort, udpPort} {
		if _, err := strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("peer: invalid port %q", p)
		}
	}
	hostname = cleanAddress(hostname)

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing := l.findByAddressLocked(hostname, port); existing != nil {
		changed := false
		if !l.multiPort && (existing.TCPPort != tcpPort || existing.UDPPort != udpPort || existing.Port != port) {
			existing.Port = port
			existing.TCPPort = tcpPort
			existing.UDPPort = udpPort
			changed = true
		}
		if weight > existing.Weight {
			existing.Weight = clampWeight(weight)
			changed = true
		}
		if isTrusted && !existing.Trusted {
			existing.Trusted = true
			changed = true
		}
		if changed {
			if err := l.store.Put(fromPeer(existing)); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	p := &Peer{
		Hostname:    hostname,
		IP:          resolveIP(hostname),
		Port:        port,
		TCPPort:     tcpPort,
		UDPPort:     udpPort,
		Trusted:     isTrusted,
		Weight:      clampWeight(weight),
		DateCreated: time.Now(),
	}
	d := fromPeer(p)
	if err := l.store.Put(d); err != nil {
		return nil, err
	}
	p.id = d.ID
	l.peers[p.id] = p
	return p, nil
}

// Add is the exported form of add, used by callers outside the package
// (gossip ingestion, CLI default-peer wiring) that don't go through load.
func (l *PeerList) Add(hostname, port, tcpPort, udpPort string, isTrusted bool, weight float64) (*Peer, error) {
	return l.add(hostname, port, tcpPort, udpPort, isTrusted, weight)
}

// findByAddress resolves address (skipping DNS if it is already an IP
// literal or multiPort is enabled) and returns matching peers. Under
// multiPort, matches are additionally filtered by port; otherwise every
// match is returned regardless of port.
func (l *PeerList) findByAddress(address, port string) []*Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findAllByAddressLocked(address, port)
}

// findByAddressLocked returns the first match, or nil. Callers must hold l.mu.
func (l *PeerList) findByAddressLocked(address, port string) *Peer {
	matches := l.findAllByAddressLocked(address, port)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func (l *PeerList) findAllByAddressLocked(address, port string) []*Peer {
	clean := cleanAddress(address)

	resolved := ""
	if !looksLikeIP(clean) && !l.multiPort {
		resolved = resolveIP(clean)
	}

	var matches []*Peer
	for _, p := range l.peers {
		hit := p.Hostname == clean || p.address() == clean
		if !hit && resolved != "" && p.IP == resolved {
			hit = true
		}
		if !hit {
			continue
		}
		if l.multiPort && port != "" && p.Port != port {
			continue
		}
		matches = append(matches, p)
	}
	return matches
}

// Update shallow-merges data into peer and persists the result.
// refreshInMemory exists for parity with the in-process call made from a
// handler that already holds the up-to-date peer; PeerList always keeps
// its own map current, so in this implementation it is always safe, and
// the flag has no observable effect here -- it is accepted to keep the
// call-sites symmetric with the design this is modeled on.
func (l *PeerList) Update(peer *Peer, data Update, refreshInMemory bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data.mergeInto(peer)
	return l.store.Put(fromPeer(peer))
}

// markConnected records a successful connection: tried resets to 0,
// connected increments, dateLastConnected is set to now, and weight is
// optionally scaled by increaseWeight (1.0 today; a reserved hook for
// future reputation tuning).
func (l *PeerList) markConnected(peer *Peer, increaseWeight float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	peer.Tried = 0
	peer.Connected++
	peer.DateLastConnected = &now
	if increaseWeight != 1.0 {
		peer.Weight = clampWeight(peer.Weight * increaseWeight)
	}
	return l.store.Put(fromPeer(peer))
}

// MarkConnected is the exported form of markConnected.
func (l *PeerList) MarkConnected(peer *Peer, increaseWeight float64) error {
	return l.markConnected(peer, increaseWeight)
}

// MarkTried increments a peer's failed-attempt counter and persists it.
func (l *PeerList) MarkTried(peer *Peer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	peer.Tried++
	return l.store.Put(fromPeer(peer))
}

// clear wipes the store and the in-memory list.
func (l *PeerList) clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Clear(); err != nil {
		return err
	}
	l.peers = map[docID]*Peer{}
	return nil
}

// Clear is the exported form of clear.
func (l *PeerList) Clear() error {
	return l.clear()
}

// isTrusted resolves uri to an address/port pair and returns true iff any
// matching Peer carries the trust bit.
func (l *PeerList) isTrusted(uri string) bool {
	pa, err := parseDefaultURI(uri)
	var address, port string
	if err != nil {
		address, port = uri, ""
	} else {
		address, port = pa.Hostname, pa.Port
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.findAllByAddressLocked(address, port) {
		if p.IsTrusted() {
			return true
		}
	}
	return false
}

// IsTrusted is the exported form of isTrusted.
func (l *PeerList) IsTrusted(uri string) bool {
	return l.isTrusted(uri)
}

// All returns every currently-known peer, in no particular order.
func (l *PeerList) All() []*Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]*Peer, 0, len(l.peers))
	for _, p := range l.peers {
		all = append(all, p)
	}
	return all
}

// getWeighted draws up to amount peers from source (default: every known
// peer) without replacement, weighted per getPeerWeight.
func (l *PeerList) getWeighted(amount int, source []*Peer) []weighted {
	l.mu.Lock()
	if source == nil {
		source = make([]*Peer, 0, len(l.peers))
		for _, p := range l.peers {
			source = append(source, p)
		}
	}
	isMaster := l.isMaster
	l.mu.Unlock()

	return getWeighted(source, amount, isMaster)
}

// GetWeighted is the exported form of getWeighted.
func (l *PeerList) GetWeighted(amount int, source []*Peer) []weighted {
	return l.getWeighted(amount, source)
}

// Load is the exported form of load.
func (l *PeerList) Load(defaultURIs []string) error {
	return l.load(defaultURIs)
}
