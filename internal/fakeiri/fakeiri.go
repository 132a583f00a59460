// Package fakeiri provides a test double for the ledger process's JSON
// "command" HTTP API, for use in iri package tests without a real IRI
// binary running.
package fakeiri

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

type neighbor struct {
	Address        string `json:"address"`
	ConnectionType string `json:"connectionType"`
}

// Ledger is an httptest-backed fake of IRI's command API.
type Ledger struct {
	Server *httptest.Server

	mu        sync.Mutex
	neighbors []neighbor
	Calls     []string
	FailNext  bool
}

// New starts a fake ledger pre-seeded with the given static neighbor
// addresses (host:port strings).
func New(staticAddresses ...string) *Ledger {
	l := &Ledger{}
	for _, addr := range staticAddresses {
		l.neighbors = append(l.neighbors, neighbor{Address: addr, ConnectionType: "tcp"})
	}
	l.Server = httptest.NewServer(http.HandlerFunc(l.handle))
	return l
}

// Close shuts down the underlying httptest server.
func (l *Ledger) Close() {
	l.Server.Close()
}

// URL returns the bare host:port the fake is listening on.
func (l *Ledger) URL() string {
	return l.Server.Listener.Addr().String()
}

// CallLog returns a snapshot of the commands received so far.
func (l *Ledger) CallLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := make([]string, len(l.Calls))
	copy(calls, l.Calls)
	return calls
}

func (l *Ledger) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string   `json:"command"`
		URIs    []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	l.Calls = append(l.Calls, req.Command)
	fail := l.FailNext
	l.FailNext = false
	l.mu.Unlock()

	if fail {
		http.Error(w, "simulated failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Command {
	case "getNeighbors":
		l.mu.Lock()
		resp := struct {
			Neighbors []neighbor `json:"neighbors"`
		}{Neighbors: l.neighbors}
		l.mu.Unlock()
		json.NewEncoder(w).Encode(resp)
	case "addNeighbors":
		l.mu.Lock()
		for _, uri := range req.URIs {
			l.neighbors = append(l.neighbors, neighbor{Address: uri, ConnectionType: "udp"})
		}
		n := len(req.URIs)
		l.mu.Unlock()
		json.NewEncoder(w).Encode(struct {
			AddedNeighbors int `json:"addedNeighbors"`
		}{n})
	case "removeNeighbors":
		l.mu.Lock()
		remove := map[string]bool{}
		for _, uri := range req.URIs {
			remove[uri] = true
		}
		var kept []neighbor
		removed := 0
		for _, n := range l.neighbors {
			if remove[n.Address] {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		l.neighbors = kept
		l.mu.Unlock()
		json.NewEncoder(w).Encode(struct {
			RemovedNeighbors int `json:"removedNeighbors"`
		}{removed})
	default:
		http.Error(w, "unknown command", http.StatusBadRequest)
	}
}
