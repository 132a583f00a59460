package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// NelsonOptions is the `nelson` subcommand's flag set, mirroring the
// recognized options table: tick intervals, ports, store location, and
// the isMaster/multiPort/temporary switches.
type NelsonOptions struct {
	CycleInterval int `long:"cycle-interval" description:"Cycle tick period, in seconds." default:"1800"`
	EpochInterval int `long:"epoch-interval" description:"Epoch tick period, in seconds." default:"21600"`
	BeatInterval  int `long:"beat-interval" description:"Beat tick period, in seconds." default:"5"`

	DataPath string `long:"data" description:"Persistent peer store location." default:"./nelson.db"`

	Port string `long:"port" description:"Peer-to-peer control port." default:"17600"`

	APIPort     string `long:"api-port" description:"Status HTTP bind port." default:"18600"`
	APIHostname string `long:"api-hostname" description:"Status HTTP bind address." default:"localhost"`

	IRIHostname string `long:"iri-hostname" description:"Ledger RPC hostname." default:"localhost"`
	IRIPort     string `long:"iri-port" description:"Ledger RPC port." default:"14265"`

	TCPPort string `long:"tcp-port" description:"Ledger TCP neighbor port advertised for self." default:"15600"`
	UDPPort string `long:"udp-port" description:"Ledger UDP neighbor port advertised for self." default:"14600"`

	TargetConcurrency int     `long:"neighbors" description:"Target number of open peer links." default:"5"`
	GossipSize        int     `long:"gossip-size" description:"Peers advertised per hello/gossip message." default:"5"`
	ReshuffleFraction float64 `long:"reshuffle-fraction" description:"Fraction of open links closed every cycle." default:"0.2"`

	IsMaster  bool `long:"master" description:"Use the reliability-weighted sampler instead of the age-weighted one."`
	MultiPort bool `long:"multi-port" description:"Permit multiple peers per hostname, differentiated by port."`
	Temporary bool `long:"temporary" description:"Use an ephemeral, in-memory peer store instead of dataPath."`

	Neighbors []string `long:"neighbor" description:"Trusted default neighbor, as hostname/port[/TCPPort[/UDPPort]]."`
}

// resolveDataPath returns the directory NelsonOptions should open its
// badger store in, creating it if necessary. Temporary mode bypasses
// this entirely in favor of an in-memory store -- see main.go.
func (o NelsonOptions) resolveDataPath() (string, error) {
	path := o.DataPath
	if path == "" {
		path = "./nelson.db"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return "", fmt.Errorf("failed to create data path %q: %w", abs, err)
	}
	return abs, nil
}
