package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lra/nelson.cli/internal/fakeiri"
	"github.com/lra/nelson.cli/iri"
	"github.com/lra/nelson.cli/node"
	"github.com/lra/nelson.cli/peer"
)

func testServer(t *testing.T) (*Server, *peer.PeerList, func()) {
	fake := fakeiri.New()
	peers := peer.NewPeerList(peer.OpenMemoryStore(), false, false)

	host, port, err := net.SplitHostPort(fake.URL())
	if err != nil {
		t.Fatal(err)
	}
	iriClient := iri.New(host, port, nil).WithTimeout(time.Second)

	n := node.New(node.Config{
		Self:              node.Self{Hostname: "127.0.0.1", Port: "0", TCPPort: "15600", UDPPort: "14600"},
		TargetConcurrency: 1,
		GossipSize:        2,
		ReshuffleFraction: 0.5,
		BeatInterval:      time.Hour,
		CycleInterval:     time.Hour,
		EpochInterval:     time.Hour,
		DialTimeout:       time.Second,
		BeatTimeout:       time.Second,
	}, peers, iriClient)

	cleanup := func() { fake.Close() }
	return NewServer(n, peers), peers, cleanup
}

func TestStatusEndpoint(t *testing.T) {
	srv, peers, cleanup := testServer(t)
	defer cleanup()

	if _, err := peers.Add("10.0.0.1", "15600", "15600", "14600", false, 1.0); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TotalPeers != 1 {
		t.Errorf("expected totalPeers=1, got %d", body.TotalPeers)
	}
	if !body.Ready {
		t.Error("expected ready=true")
	}
}

func TestPeersEndpoint(t *testing.T) {
	srv, peers, cleanup := testServer(t)
	defer cleanup()

	if _, err := peers.Add("10.0.0.2", "15600", "15600", "14600", true, 1.0); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/peers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body []*peer.Peer
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(body))
	}
	if !body[0].Trusted {
		t.Error("expected trusted peer to round-trip as trusted")
	}
}

func TestPeerStatsEndpoint(t *testing.T) {
	srv, peers, cleanup := testServer(t)
	defer cleanup()

	if _, err := peers.Add("10.0.0.3", "15600", "15600", "14600", false, 1.0); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/peer-stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body peerStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Buckets) != 5 {
		t.Fatalf("expected 5 windows, got %d", len(body.Buckets))
	}
	if body.Buckets[0].FirstSeen != 1 {
		t.Errorf("expected 1 peer first-seen within 1h, got %d", body.Buckets[0].FirstSeen)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, cleanup := testServer(t)
	defer cleanup()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/peers", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected wildcard CORS origin, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
