package api

import (
	"time"

	"github.com/lra/nelson.cli/heart"
	"github.com/lra/nelson.cli/node"
	"github.com/lra/nelson.cli/peer"
)

// statusResponse is the body of GET /.
type statusResponse struct {
	Ready          bool           `json:"ready"`
	LedgerHealthy  bool           `json:"ledgerHealthy"`
	TotalPeers     int            `json:"totalPeers"`
	ConnectedPeers []*peer.Peer   `json:"connectedPeers"`
	Config         node.Config    `json:"config"`
	Heart          heart.Snapshot `json:"heart"`
}

// statsBucket is the peer count observed within a single lookback window.
type statsBucket struct {
	Window    string `json:"window"`
	FirstSeen int    `json:"firstSeen"`
	LastActive int   `json:"lastActive"`
}

// peerStatsResponse is the body of GET /peer-stats.
type peerStatsResponse struct {
	Buckets []statsBucket `json:"buckets"`
}

var statsWindows = []struct {
	label string
	d     time.Duration
}{
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"12h", 12 * time.Hour},
	{"24h", 24 * time.Hour},
	{"7d", 7 * 24 * time.Hour},
}

// peerStats buckets peers by how recently they were first seen
// (DateCreated) and last active (DateLastConnected) against the fixed
// set of lookback windows in statsWindows.
func peerStats(peers []*peer.Peer, now time.Time) []statsBucket {
	buckets := make([]statsBucket, len(statsWindows))
	for i, w := range statsWindows {
		buckets[i].Window = w.label
		cutoff := now.Add(-w.d)
		for _, p := range peers {
			if p.DateCreated.After(cutoff) {
				buckets[i].FirstSeen++
			}
			if p.DateLastConnected != nil && p.DateLastConnected.After(cutoff) {
				buckets[i].LastActive++
			}
		}
	}
	return buckets
}
