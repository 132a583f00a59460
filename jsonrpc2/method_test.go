package jsonrpc2

import (
	"context"
	"encoding/json"
	"testing"
)

// PingArgs is exported because Methods skips methods whose argument
// types are neither exported nor builtin.
type PingArgs struct {
	Nonce int `json:"nonce"`
}

type pingReply struct {
	Nonce int `json:"nonce"`
}

type pingService struct{}

func (s *pingService) Ping(ctx context.Context, args PingArgs) (*pingReply, error) {
	return &pingReply{Nonce: args.Nonce}, nil
}

func TestMethodCallJSON(t *testing.T) {
	methods, err := Methods(&pingService{})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := methods["Ping"]
	if !ok {
		t.Fatal("expected Ping method to be registered")
	}

	res, err := m.CallJSON(context.Background(), json.RawMessage(`[{"nonce": 7}]`))
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := res.(*pingReply)
	if !ok {
		t.Fatalf("invalid response type: %T", res)
	}
	if reply.Nonce != 7 {
		t.Errorf("expected nonce 7, got %d", reply.Nonce)
	}
}
