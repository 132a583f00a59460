package peer

import "time"

// document is the on-disk shape of a Peer record. It is a plain struct
// (not Peer itself) so that storage concerns -- gob encoding, the opaque
// ID -- never leak into the in-memory type peer.go exposes.
type document struct {
	ID docID

	Hostname string
	IP       string
	Port     string
	TCPPort  string
	UDPPort  string

	Trusted bool
	Weight  float64

	DateCreated       time.Time
	DateLastConnected *time.Time
	Connected         int
	Tried             int
}

func (d *document) toPeer() *Peer {
	return &Peer{
		id:                d.ID,
		Hostname:          d.Hostname,
		IP:                d.IP,
		Port:              d.Port,
		TCPPort:           d.TCPPort,
		UDPPort:           d.UDPPort,
		Trusted:           d.Trusted,
		Weight:            d.Weight,
		DateCreated:       d.DateCreated,
		DateLastConnected: d.DateLastConnected,
		Connected:         d.Connected,
		Tried:             d.Tried,
	}
}

func fromPeer(p *Peer) *document {
	return &document{
		ID:                p.id,
		Hostname:          p.Hostname,
		IP:                p.IP,
		Port:              p.Port,
		TCPPort:           p.TCPPort,
		UDPPort:           p.UDPPort,
		Trusted:           p.Trusted,
		Weight:            p.Weight,
		DateCreated:       p.DateCreated,
		DateLastConnected: p.DateLastConnected,
		Connected:         p.Connected,
		Tried:             p.Tried,
	}
}

// Store is the persistence backend for a PeerList. Implementations need
// only support whole-record get/put/delete/scan -- PeerList handles
// indexing, address matching, and weighting entirely in memory.
type Store interface {
	// All returns every stored document, in no particular order.
	All() ([]*document, error)
	// Put inserts or overwrites a document. If d.ID is empty, a new one
	// is assigned and written back into d.
	Put(d *document) error
	// Delete removes a document by ID. Deleting a non-existent ID is
	// not an error.
	Delete(id docID) error
	// Clear removes every document.
	Clear() error
	// Close releases the underlying storage handle.
	Close() error
}
