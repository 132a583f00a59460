package peer

import (
	"fmt"
	"net"
	"strings"
)

// DefaultTCPPort and DefaultUDPPort are used when a default-peer URI does
// not specify ledger neighbor ports explicitly.
const (
	DefaultTCPPort = "15600"
	DefaultUDPPort = "14600"
)

// cleanAddress normalizes an address string to its canonical form: a
// leading "::ffff:" IPv4-mapped prefix is stripped, a private-range or
// loopback literal is rewritten to "localhost", and anything else
// (including plain hostnames) passes through unchanged. It is idempotent:
// cleanAddress(cleanAddress(x)) == cleanAddress(x).
func cleanAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "::ffff:")

	ip := net.ParseIP(address)
	if ip == nil {
		return address
	}
	if isPrivate(ip) || ip.IsLoopback() {
		return "localhost"
	}
	return address
}

var privateBlocks = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
	}
	blocks := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, block, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		blocks = append(blocks, block)
	}
	return blocks
}()

func isPrivate(ip net.IP) bool {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// defaultURI is a parsed "hostname/port/TCPPort/UDPPort" string as
// supplied in Nelson's configured default-peer list.
type defaultURI struct {
	Hostname string
	Port     string
	TCPPort  string
	UDPPort  string
}

// parseDefaultURI splits a default-peer URI into its components, filling
// in DefaultTCPPort/DefaultUDPPort when not specified. Accepted forms:
//
//	hostname/port
//	hostname/port/TCPPort
//	hostname/port/TCPPort/UDPPort
func parseDefaultURI(raw string) (defaultURI, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, "/")
	if len(parts) < 2 {
		return defaultURI{}, fmt.Errorf("peer: invalid default peer URI %q", raw)
	}

	u := defaultURI{
		Hostname: parts[0],
		Port:     parts[1],
		TCPPort:  DefaultTCPPort,
		UDPPort:  DefaultUDPPort,
	}
	if len(parts) >= 3 {
		u.TCPPort = parts[2]
	}
	if len(parts) >= 4 {
		u.UDPPort = parts[3]
	}
	if len(parts) > 4 {
		return defaultURI{}, fmt.Errorf("peer: invalid default peer URI %q", raw)
	}
	return u, nil
}

// resolveIP resolves a hostname to its first IPv4 address record, per
// PeerList.findByAddress's DNS-matching rule. It returns "" if the
// hostname is already an IP literal, has no IPv4 record, or cannot be
// resolved -- resolution failures are not fatal, they just leave a
// peer's ip field empty until a later lookup succeeds.
func resolveIP(hostname string) string {
	if net.ParseIP(hostname) != nil {
		return ""
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return ""
}

func looksLikeIP(address string) bool {
	return net.ParseIP(address) != nil
}
