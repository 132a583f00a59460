package link

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lra/nelson.cli/jsonrpc2"
)

// blockingCodec never answers a request, so calls made over it always
// time out -- used to drive the missed-beat counter without a real
// unresponsive peer.
type blockingCodec struct{}

func (blockingCodec) ReadMessage() (*jsonrpc2.Message, error) {
	select {}
}

func (blockingCodec) WriteMessage(*jsonrpc2.Message) error {
	return nil
}

func TestDialAcceptHandshake(t *testing.T) {
	var gotOnServer []Identity
	var opened *Link

	listener := &Listener{
		Self:   Identity{Hostname: "server.example", Port: "16600"},
		Gossip: func() []Identity { return []Identity{{Hostname: "known.example", Port: "16600"}} },
		OnGossip: func(ids []Identity) {
			gotOnServer = append(gotOnServer, ids...)
		},
		OnOpen: func(l *Link) { opened = l },
	}

	srv := httptest.NewServer(listener)
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var gotOnClient []Identity
	client, err := Dial(ctx, addr, Identity{Hostname: "client.example", Port: "16601"},
		func() []Identity { return nil },
		func(ids []Identity) { gotOnClient = append(gotOnClient, ids...) },
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close("test done")

	if client.State() != Open {
		t.Fatalf("expected client link to be OPEN, got %s", client.State())
	}

	time.Sleep(50 * time.Millisecond)
	if opened == nil {
		t.Fatal("expected server to report an opened link")
	}
	if len(gotOnServer) != 1 || gotOnServer[0].Hostname != "client.example" {
		t.Errorf("expected server to learn client's identity, got %+v", gotOnServer)
	}

	// The client learns the server's sample twice -- once from the reply
	// to its own hello, once from the server's hello -- and the server's
	// identity once, from the server's hello.
	learned := map[string]int{}
	for _, id := range gotOnClient {
		learned[id.Hostname]++
	}
	if len(gotOnClient) != 3 || learned["known.example"] != 2 || learned["server.example"] != 1 {
		t.Errorf("expected client to learn server's identity and gossip sample, got %+v", gotOnClient)
	}
}

func TestBeatClosesAfterMissedBeats(t *testing.T) {
	codec := blockingCodec{}
	remote := &jsonrpc2.Remote{Codec: codec, Client: &jsonrpc2.Client{}, Server: &jsonrpc2.Server{}}
	closed := make(chan string, 1)
	l := &Link{
		state:   Open,
		remote:  remote,
		codec:   codec,
		onClose: func(reason string) { closed <- reason },
	}

	const beatInterval = 20 * time.Millisecond
	start := time.Now()

	// Beat dispatches each ping off the calling goroutine, so a caller
	// driving a shared scheduler loop is never blocked by it -- wait out
	// one beatInterval between calls the same way onBeat's ticker would.
	for i := 0; i < maxMissedBeats; i++ {
		l.Beat(beatInterval)
		time.Sleep(beatInterval + 30*time.Millisecond)
	}

	if l.State() != Closed {
		t.Fatalf("expected CLOSED after %d missed beats, got %s", maxMissedBeats, l.State())
	}

	// maxMissedBeats consecutive misses at beatInterval should close in
	// roughly maxMissedBeats*beatInterval, not some multiple of it.
	if elapsed := time.Since(start); elapsed > maxMissedBeats*(beatInterval+50*time.Millisecond) {
		t.Errorf("expected close within ~%d beats of %s, took %s", maxMissedBeats, beatInterval, elapsed)
	}

	select {
	case reason := <-closed:
		if reason != "timeout" {
			t.Errorf("expected timeout reason, got %q", reason)
		}
	default:
		t.Error("expected onClose to be invoked")
	}
}

// TestBeatDoesNotBlockCaller verifies Beat returns immediately even
// against an unresponsive peer, instead of blocking for up to timeout --
// the bug that let one dead link stall the whole scheduler loop.
func TestBeatDoesNotBlockCaller(t *testing.T) {
	codec := blockingCodec{}
	remote := &jsonrpc2.Remote{Codec: codec, Client: &jsonrpc2.Client{}, Server: &jsonrpc2.Server{}}
	l := &Link{
		state:  Open,
		remote: remote,
		codec:  codec,
	}

	start := time.Now()
	l.Beat(200 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("expected Beat to return immediately, took %s", elapsed)
	}
}
