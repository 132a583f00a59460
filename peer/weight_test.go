package peer

import (
	"testing"
	"time"
)

func TestGetWeightedRespectsAmount(t *testing.T) {
	now := time.Now()
	peers := []*Peer{
		{Hostname: "a", Weight: 1, DateCreated: now.Add(-time.Hour)},
		{Hostname: "b", Weight: 1, DateCreated: now.Add(-time.Hour)},
		{Hostname: "c", Weight: 1, DateCreated: now.Add(-time.Hour)},
	}

	got := getWeighted(peers, 2, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}

	seen := map[string]bool{}
	for _, w := range got {
		if seen[w.Peer.Hostname] {
			t.Fatalf("duplicate peer %q in result", w.Peer.Hostname)
		}
		seen[w.Peer.Hostname] = true
	}
}

func TestGetWeightedZeroMeansAll(t *testing.T) {
	now := time.Now()
	peers := []*Peer{
		{Hostname: "a", Weight: 1, DateCreated: now.Add(-time.Hour)},
		{Hostname: "b", Weight: 1, DateCreated: now.Add(-time.Hour)},
	}
	got := getWeighted(peers, 0, false)
	if len(got) != len(peers) {
		t.Fatalf("expected all %d peers, got %d", len(peers), len(got))
	}
}

func TestGetWeightedTrustedRatioIsOne(t *testing.T) {
	now := time.Now()
	peers := []*Peer{
		{Hostname: "trusted", Weight: 1, Trusted: true, DateCreated: now.Add(-time.Hour)},
	}
	got := getWeighted(peers, 1, false)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Ratio != 1.0 {
		t.Errorf("expected trusted ratio 1.0, got %f", got[0].Ratio)
	}
}

func TestGetWeightedTopPeerRatioIsOne(t *testing.T) {
	now := time.Now()
	peers := []*Peer{
		{Hostname: "top", Weight: 4, DateCreated: now.Add(-time.Hour)},
		{Hostname: "bottom", Weight: 1, DateCreated: now.Add(-time.Hour)},
	}
	got := getWeighted(peers, 0, false)
	for _, w := range got {
		if w.Peer.Hostname == "top" && w.Ratio != 1.0 {
			t.Errorf("expected the pool's top (non-trusted) weight to carry ratio 1.0, got %f", w.Ratio)
		}
	}
}

func TestGetPeerWeightDistribution(t *testing.T) {
	now := time.Now()
	a := &Peer{Hostname: "a", Weight: 2, DateCreated: now.Add(-time.Hour)}
	b := &Peer{Hostname: "b", Weight: 1, DateCreated: now.Add(-time.Hour)}

	const n = 10000
	aCount := 0
	for i := 0; i < n; i++ {
		got := getWeighted([]*Peer{a, b}, 1, false)
		if got[0].Peer == a {
			aCount++
		}
	}

	ratio := float64(aCount) / float64(n)
	if ratio < 0.60 || ratio > 0.73 {
		t.Errorf("expected ~66.7%% draws for A, got %.1f%%", ratio*100)
	}
}

func TestGetPeerWeightMasterMode(t *testing.T) {
	now := time.Now()
	created := now.Add(-2 * time.Hour)
	connected := now.Add(-time.Hour)
	p := &Peer{DateCreated: created, DateLastConnected: &connected}

	w := getPeerWeight(p, true, now)
	if w < 3500 || w > 3700 {
		t.Errorf("expected ~3600s master weight, got %f", w)
	}
}
