// Package api provides the read-only HTTP status server: peer counts,
// connection state, and the scheduler snapshot, for operators and
// monitoring tools polling a running node.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/lra/nelson.cli/node"
	"github.com/lra/nelson.cli/peer"
)

// Server is the status HTTP API. It holds no state of its own beyond
// the Node and PeerList it reports on.
type Server struct {
	node  *node.Node
	peers *peer.PeerList
}

// NewServer wires a Server around an already-running Node and its
// PeerList.
func NewServer(n *node.Node, peers *peer.PeerList) *Server {
	return &Server{node: n, peers: peers}
}

// Handler returns the chi router with every route mounted, CORS-wrapped
// for open, read-only access.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/", s.handleStatus)
	r.Get("/peers", s.handlePeers)
	r.Get("/peer-stats", s.handlePeerStats)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	all := s.peers.All()
	resp := statusResponse{
		Ready:          true,
		LedgerHealthy:  s.node.IRIHealthy(),
		TotalPeers:     len(all),
		ConnectedPeers: s.node.ConnectedPeers(),
		Config:         s.node.Config(),
		Heart:          s.node.HeartSnapshot(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.peers.All())
}

func (s *Server) handlePeerStats(w http.ResponseWriter, r *http.Request) {
	resp := peerStatsResponse{Buckets: peerStats(s.peers.All(), time.Now())}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warningf("api: failed to encode response: %s", err)
	}
}
