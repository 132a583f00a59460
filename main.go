package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	"github.com/dgraph-io/badger"
	flags "github.com/jessevdk/go-flags"

	"github.com/lra/nelson.cli/api"
	"github.com/lra/nelson.cli/heart"
	"github.com/lra/nelson.cli/iri"
	"github.com/lra/nelson.cli/link"
	"github.com/lra/nelson.cli/node"
	"github.com/lra/nelson.cli/peer"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options.
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`

	Nelson NelsonOptions `command:"nelson" description:"Run a Nelson peer-discovery daemon against a local IRI node."`
}

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

// openStore opens the configured peer store: an ephemeral in-memory
// store under Temporary, otherwise a persistent badger database at
// DataPath.
func openStore(opts NelsonOptions) (peer.Store, error) {
	if opts.Temporary {
		logger.Info("Using an ephemeral in-memory peer store.")
		return peer.OpenMemoryStore(), nil
	}

	path, err := opts.resolveDataPath()
	if err != nil {
		return nil, err
	}
	logger.Infof("Opening peer store at %s", path)
	badgerOpts := badger.DefaultOptions(path)
	return peer.OpenBadgerStore(badgerOpts)
}

func runNelson(opts NelsonOptions) error {
	store, err := openStore(opts)
	if err != nil {
		return ErrExplain{err, "Failed to open the peer store. Use --data to point at a writable directory, or --temporary to skip persistence."}
	}

	peers := peer.NewPeerList(store, opts.IsMaster, opts.MultiPort)
	if err := peers.Load(opts.Neighbors); err != nil {
		return ErrExplain{err, "Failed to load the configured default neighbors."}
	}

	iriClient := iri.New(opts.IRIHostname, opts.IRIPort, nil)

	selfHostname, err := os.Hostname()
	if err != nil || selfHostname == "" {
		selfHostname = "localhost"
	}

	n := node.New(node.Config{
		Self: node.Self{
			Hostname: selfHostname,
			Port:     opts.Port,
			TCPPort:  opts.TCPPort,
			UDPPort:  opts.UDPPort,
		},
		TargetConcurrency: opts.TargetConcurrency,
		GossipSize:        opts.GossipSize,
		ReshuffleFraction: opts.ReshuffleFraction,
		BeatInterval:      time.Duration(opts.BeatInterval) * time.Second,
		CycleInterval:     time.Duration(opts.CycleInterval) * time.Second,
		EpochInterval:     time.Duration(opts.EpochInterval) * time.Second,
		DialTimeout:       iri.DefaultTimeout,
		BeatTimeout:       time.Duration(opts.BeatInterval) * time.Second,
	}, peers, iriClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := iriClient.Start(ctx); err != nil {
		return ErrExplain{err, "Failed to connect to the local IRI node. Make sure it is running with its API enabled."}
	}
	defer iriClient.End()

	n.Start(ctx)
	defer n.End()

	linkAddr := net.JoinHostPort("0.0.0.0", opts.Port)
	logger.Infof("Listening for peer links on %s", linkAddr)
	errChan := make(chan error, 2)
	go func() {
		errChan <- http.ListenAndServe(linkAddr, n.Listener())
	}()

	apiAddr := net.JoinHostPort(opts.APIHostname, opts.APIPort)
	logger.Infof("Serving status API on %s", apiAddr)
	apiSrv := api.NewServer(n, peers)
	go func() {
		errChan <- http.ListenAndServe(apiAddr, apiSrv.Handler())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case err := <-errChan:
		return err
	case <-sigCh:
		logger.Info("Shutting down...")
		return nil
	}
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	_, err := parser.Parse()
	if err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			return
		}
		fmt.Println(err)
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	numVerbose := len(options.Verbose)
	if numVerbose > len(logLevels)-1 {
		numVerbose = len(logLevels) - 1
	}
	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages.
		peer.SetLogger(golog.New(logWriter, logLevel))
		iri.SetLogger(golog.New(logWriter, logLevel))
		link.SetLogger(golog.New(logWriter, logLevel))
		heart.SetLogger(golog.New(logWriter, logLevel))
		node.SetLogger(golog.New(logWriter, logLevel))
		api.SetLogger(golog.New(logWriter, logLevel))
	}

	if parser.Active == nil || parser.Active.Name != "nelson" {
		fmt.Println("Run `nelson nelson --help` for usage.")
		os.Exit(1)
	}

	err = runNelson(options.Nelson)
	if err == nil {
		return
	}
	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	if _, ok := err.(ErrExplain); !ok {
		err = ErrExplain{err, "An unexpected error occurred. Please open an issue with the above message."}
	}
	exit(2, "nelson failed: %s\n", err)
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with a user-facing explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}
