package jsonrpc2

import (
	"context"
	"testing"
	"time"
)

type echoService struct{}

func (s *echoService) Echo(ctx context.Context, msg string) (string, error) {
	return msg, nil
}

func TestRemoteCall(t *testing.T) {
	server, client := ServePipe()
	if err := server.Server.(*Server).Register("test_", &echoService{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var reply string
	if err := client.Call(ctx, &reply, "test_echo", "hello"); err != nil {
		t.Fatal(err)
	}
	if reply != "hello" {
		t.Errorf("expected echo reply %q, got %q", "hello", reply)
	}
}
