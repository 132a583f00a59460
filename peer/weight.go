package peer

import (
	"crypto/rand"
	"math/big"
	"time"
)

// getPeerWeight computes the sampling weight used by getWeighted. In
// master mode it rewards longevity of the relationship regardless of
// stored trust; in normal mode it amplifies trusted/high-weight peers
// and ages in every peer over time.
func getPeerWeight(p *Peer, isMaster bool, now time.Time) float64 {
	if isMaster {
		if p.DateLastConnected == nil {
			return 1
		}
		secs := p.DateLastConnected.Sub(p.DateCreated).Seconds()
		if secs < 1 {
			return 1
		}
		return secs
	}

	secs := now.Sub(p.DateCreated).Seconds()
	w := secs * p.Weight
	if w < 1 {
		return 1
	}
	return w
}

// weighted pairs a Peer with the ratio of its weight to the pool's
// maximum weight, as returned by getWeighted.
type weighted struct {
	Peer  *Peer
	Ratio float64
}

// getWeighted draws up to amount peers from source without replacement, with
// probability proportional to getPeerWeight. amount=0 means "all peers".
// Trusted peers are rewritten to ratio 1.0 in the final pass regardless
// of where they landed in the draw.
//
// Sampling works against two parallel slices (peers, weights) so that
// removing a drawn entry never has to re-locate it by value -- the
// original implementation this is modeled on located the picked peer by
// indexOf after already splicing it out of one of the two arrays,
// silently corrupting later draws. Dropping both slices by the same
// index sidesteps that entirely.
func getWeighted(source []*Peer, amount int, isMaster bool) []weighted {
	if amount == 0 {
		amount = len(source)
	}
	if amount > len(source) {
		amount = len(source)
	}

	now := time.Now()
	peers := make([]*Peer, len(source))
	copy(peers, source)
	weights := make([]float64, len(peers))
	weightsMax := 0.0
	for i, p := range peers {
		w := getPeerWeight(p, isMaster, now)
		weights[i] = w
		if w > weightsMax {
			weightsMax = w
		}
	}

	results := make([]weighted, 0, amount)
	for i := 0; i < amount && len(peers) > 0; i++ {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		pick := cryptoFloat64() * total
		idx := len(peers) - 1
		running := 0.0
		for j, w := range weights {
			running += w
			if pick <= running {
				idx = j
				break
			}
		}

		p := peers[idx]
		w := weights[idx]
		peers = append(peers[:idx], peers[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)

		ratio := 1.0
		if weightsMax > 0 {
			ratio = w / weightsMax
		}
		results = append(results, weighted{Peer: p, Ratio: ratio})
	}

	for i := range results {
		if results[i].Peer.IsTrusted() {
			results[i].Ratio = 1.0
		}
	}
	return results
}

// cryptoFloat64 returns a uniform random float64 in [0, 1) sourced from
// crypto/rand, matching the personality generator's randomness source
// rather than math/rand's process-global state.
func cryptoFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / float64(int64(1)<<53)
}
