package iri

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	startupPollInterval = 5 * time.Second
	healthTickInterval  = 15 * time.Second

	// DefaultTimeout bounds every individual RPC call. IRI's own API has
	// no built-in timeout, so callers get a conservative default unless
	// they override it via WithTimeout.
	DefaultTimeout = 10 * time.Second
)

// HealthFunc is notified on every health-ticker result. On failure it is
// called with (false, nil); on success with (true, neighborIPs).
type HealthFunc func(healthy bool, neighborIPs []string)

// Client talks to a local IRI ledger process over its JSON-over-HTTP
// "command" RPC.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	onHealth HealthFunc

	mu        sync.Mutex
	healthy   bool
	static    map[string]bool // by IP and by hostname
	cancelEnd context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a Client targeting the IRI process listening at
// hostname:iriPort.
func New(hostname, iriPort string, onHealth HealthFunc) *Client {
	return &Client{
		endpoint: fmt.Sprintf("http://%s", net.JoinHostPort(hostname, iriPort)),
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		onHealth: onHealth,
		static:   map[string]bool{},
	}
}

// WithTimeout overrides the per-call RPC timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// SetHealthFunc overrides the health callback, for composers (Node) that
// need to wire themselves in after constructing the Client.
func (c *Client) SetHealthFunc(f HealthFunc) {
	c.mu.Lock()
	c.onHealth = f
	c.mu.Unlock()
}

// Start polls getNeighbors every 5s until the first successful
// response, records the currently-configured ledger neighbors as static,
// marks the client healthy, and begins the 15s health ticker. It returns
// only after that first success, or when ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		neighbors, err := c.getNeighbors(ctx)
		if err == nil {
			c.mu.Lock()
			c.static = staticSetFrom(neighbors)
			c.healthy = true
			c.mu.Unlock()
			logger.Infof("iri: connected after %d attempt(s), %d static neighbor(s)", attempt, len(neighbors))
			break
		}
		logger.Debugf("iri: getNeighbors attempt %d failed: %s", attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startupPollInterval):
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancelEnd = cancel
	c.wg.Add(1)
	go c.healthLoop(runCtx)
	return nil
}

// End stops the health ticker and returns the client to a quiescent
// state from which Start may resume.
func (c *Client) End() {
	c.mu.Lock()
	cancel := c.cancelEnd
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

func (c *Client) healthLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(healthTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tickHealth(ctx)
		}
	}
}

func (c *Client) tickHealth(ctx context.Context) {
	neighbors, err := c.getNeighbors(ctx)
	if err != nil {
		c.mu.Lock()
		c.healthy = false
		onHealth := c.onHealth
		c.mu.Unlock()
		logger.Warningf("iri: health check failed: %s", err)
		if onHealth != nil {
			onHealth(false, nil)
		}
		return
	}

	c.mu.Lock()
	c.healthy = true
	onHealth := c.onHealth
	c.mu.Unlock()

	ips := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ips = append(ips, hostOf(n.Address))
	}
	if onHealth != nil {
		onHealth(true, ips)
	}
}

// IsHealthy reports the most recently observed health state.
func (c *Client) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) getNeighbors(ctx context.Context) ([]neighborInfo, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var resp getNeighborsResponse
	if err := command(ctx, c.http, c.endpoint, getNeighborsRequest{Command: "getNeighbors"}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("iri: getNeighbors: %s", resp.Error)
	}
	return resp.Neighbors, nil
}

// AddNeighbors issues addNeighbors for the given neighbor URIs.
func (c *Client) AddNeighbors(ctx context.Context, uris []string) (int, error) {
	if len(uris) == 0 {
		return 0, nil
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var resp addNeighborsResponse
	if err := command(ctx, c.http, c.endpoint, addNeighborsRequest{Command: "addNeighbors", URIs: uris}, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("iri: addNeighbors: %s", resp.Error)
	}
	return resp.AddedNeighbors, nil
}

// RemoveNeighbors issues removeNeighbors after silently filtering out
// any URI that names a static neighbor.
func (c *Client) RemoveNeighbors(ctx context.Context, uris []string) (int, error) {
	filtered := make([]string, 0, len(uris))
	for _, uri := range uris {
		if c.isStaticURI(uri) {
			logger.Warningf("iri: refusing to remove static neighbor %s", uri)
			continue
		}
		filtered = append(filtered, uri)
	}
	if len(filtered) == 0 {
		return 0, nil
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	var resp removeNeighborsResponse
	if err := command(ctx, c.http, c.endpoint, removeNeighborsRequest{Command: "removeNeighbors", URIs: filtered}, &resp); err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("iri: removeNeighbors: %s", resp.Error)
	}
	return resp.RemovedNeighbors, nil
}

// UpdateNeighbors fetches the current neighbor set, removes all of it
// (including static neighbors -- see RemoveAllNeighbors for the
// static-preserving alternative), then adds uris. The two RPCs are not
// atomic: a crash between them can leave IRI with no neighbors.
func (c *Client) UpdateNeighbors(ctx context.Context, uris []string) error {
	current, err := c.getNeighbors(ctx)
	if err != nil {
		return err
	}

	all := make([]string, 0, len(current))
	for _, n := range current {
		all = append(all, udpURIFromAddress(n.Address))
	}
	if len(all) > 0 {
		ctx2, cancel := c.callCtx(ctx)
		var resp removeNeighborsResponse
		err := command(ctx2, c.http, c.endpoint, removeNeighborsRequest{Command: "removeNeighbors", URIs: all}, &resp)
		cancel()
		if err != nil {
			return err
		}
	}

	_, err = c.AddNeighbors(ctx, uris)
	return err
}

// RemoveAllNeighbors fetches the current neighbor set and removes every
// one of them except static neighbors.
func (c *Client) RemoveAllNeighbors(ctx context.Context) error {
	current, err := c.getNeighbors(ctx)
	if err != nil {
		return err
	}

	var dynamic []string
	for _, n := range current {
		uri := udpURIFromAddress(n.Address)
		if c.isStaticURI(uri) {
			continue
		}
		dynamic = append(dynamic, uri)
	}
	_, err = c.RemoveNeighbors(ctx, dynamic)
	return err
}

// IsStaticNeighbor reports whether host (an IP or hostname) names one of
// the neighbors IRI had configured before Start was called.
func (c *Client) IsStaticNeighbor(host string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.static[host]
}

func (c *Client) isStaticURI(uri string) bool {
	return c.IsStaticNeighbor(hostOf(uri))
}

func staticSetFrom(neighbors []neighborInfo) map[string]bool {
	set := make(map[string]bool, len(neighbors))
	for _, n := range neighbors {
		host := hostOf(n.Address)
		if host == "" {
			continue
		}
		set[host] = true
		if ips, err := net.LookupHost(host); err == nil {
			for _, ip := range ips {
				set[ip] = true
			}
		}
	}
	return set
}

func hostOf(address string) string {
	address = strings.TrimPrefix(address, "tcp://")
	address = strings.TrimPrefix(address, "udp://")
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}

func udpURIFromAddress(address string) string {
	return fmt.Sprintf("udp://%s", hostOf(address)+portSuffix(address))
}

func portSuffix(address string) string {
	address = strings.TrimPrefix(address, "tcp://")
	address = strings.TrimPrefix(address, "udp://")
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return ""
	}
	return ":" + port
}
