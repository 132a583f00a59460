// Package gorilla implements a jsonrpc2.Codec over a websocket connection
// using github.com/gorilla/websocket.
package gorilla

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lra/nelson.cli/jsonrpc2"
)

// WebSocketDial returns a Codec that wraps a client-side connection with
// JSON encoding and decoding.
func WebSocketDial(ctx context.Context, url string) (jsonrpc2.Codec, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsCodec{conn: conn}, nil
}

var _ jsonrpc2.Codec = &wsCodec{}

type wsCodec struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
}

func (codec *wsCodec) ReadMessage() (*jsonrpc2.Message, error) {
	codec.muRead.Lock()
	defer codec.muRead.Unlock()
	var msg jsonrpc2.Message
	if err := codec.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (codec *wsCodec) WriteMessage(msg *jsonrpc2.Message) error {
	codec.muWrite.Lock()
	defer codec.muWrite.Unlock()
	return codec.conn.WriteJSON(msg)
}

func (codec *wsCodec) Close() error {
	return codec.conn.Close()
}

// Upgrader upgrades an inbound HTTP request to a websocket-backed Codec.
type Upgrader struct {
	websocket.Upgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter, responseHeader http.Header) (jsonrpc2.Codec, error) {
	conn, err := u.Upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		return nil, err
	}
	return &wsCodec{conn: conn}, nil
}
