package peer

import (
	"fmt"
	"net"
	"time"
)

// MaxWeight is the upper bound a Peer's weight can be raised to. See
// PeerList.add and PeerList.markConnected.
const MaxWeight = 4000000

// docID identifies a Peer's record in the backing Store. It is opaque
// outside of the peer package: nothing about a Peer's identity or
// equality depends on it, only PeerList's own bookkeeping does.
type docID string

// Peer is the in-memory record of a remote participant known to Nelson.
// It is intentionally a thin value type with no reference back to the
// PeerList that owns it -- every mutation that needs to be persisted goes
// through a PeerList method instead of a self-update callback stored on
// the Peer. This avoids the Peer<->PeerList ownership cycle that the
// original implementation had.
type Peer struct {
	id docID

	Hostname string // IP-literal if numeric, else FQDN
	IP       string // resolved IPv4 address, or "" if unresolved
	Port     string // peer-to-peer control port

	TCPPort string // ledger TCP neighbor port
	UDPPort string // ledger UDP neighbor port

	Trusted bool
	Weight  float64

	DateCreated       time.Time
	DateLastConnected *time.Time
	Connected         int
	Tried             int
}

// IsTrusted reports the stored trust bit.
func (p *Peer) IsTrusted() bool {
	return p.Trusted
}

// address is the canonical host used to build ledger URIs: the resolved
// IP when known, otherwise the hostname as given.
func (p *Peer) address() string {
	if p.IP != "" {
		return p.IP
	}
	return p.Hostname
}

// GetUDPURI formats the udp://host:UDPPort URI sent to the ledger process.
func (p *Peer) GetUDPURI() string {
	return fmt.Sprintf("udp://%s", net.JoinHostPort(p.address(), p.UDPPort))
}

// GetTCPURI formats the tcp://host:TCPPort URI sent to the ledger process.
func (p *Peer) GetTCPURI() string {
	return fmt.Sprintf("tcp://%s", net.JoinHostPort(p.address(), p.TCPPort))
}

// ControlAddr formats the host:Port address used to dial this peer's
// peer-to-peer control socket.
func (p *Peer) ControlAddr() string {
	return net.JoinHostPort(p.address(), p.Port)
}

// IdentityKey is the string Node uses to key its live-link table by a
// Peer's identity (hostname + control port).
func (p *Peer) IdentityKey() string {
	return p.Hostname + "|" + p.Port
}

// Update is the set of fields that a caller may shallow-merge into a Peer
// through PeerList.Update. Zero-value fields are left untouched by the
// merge -- see mergeInto.
type Update struct {
	Hostname          string
	IP                string
	Port              string
	TCPPort           string
	UDPPort           string
	Trusted           *bool
	Weight            *float64
	DateLastConnected *time.Time
	Connected         *int
	Tried             *int
}

// mergeInto shallow-merges non-zero fields of u into p.
func (u Update) mergeInto(p *Peer) {
	if u.Hostname != "" {
		p.Hostname = u.Hostname
	}
	if u.IP != "" {
		p.IP = u.IP
	}
	if u.Port != "" {
		p.Port = u.Port
	}
	if u.TCPPort != "" {
		p.TCPPort = u.TCPPort
	}
	if u.UDPPort != "" {
		p.UDPPort = u.UDPPort
	}
	if u.Trusted != nil {
		p.Trusted = *u.Trusted
	}
	if u.Weight != nil {
		p.Weight = clampWeight(*u.Weight)
	}
	if u.DateLastConnected != nil {
		p.DateLastConnected = u.DateLastConnected
	}
	if u.Connected != nil {
		p.Connected = *u.Connected
	}
	if u.Tried != nil {
		p.Tried = *u.Tried
	}
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
