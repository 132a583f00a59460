package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"unicode"
)

// Handler dispatches an incoming Message to a registered Method and
// produces the Message to write back.
type Handler interface {
	Handle(ctx context.Context, msg *Message) *Message
}

var _ Handler = &Server{}

// Server contains the method registry.
type Server struct {
	registry map[string]Method
}

// Register adds valid methods from the receiver to the registry with the
// given prefix. The first letter of each method name is lowercased to
// match JS-style RPC naming (e.g. "nelson_" + "Hello" -> "nelson_hello").
func (s *Server) Register(prefix string, receiver interface{}) error {
	if s.registry == nil {
		s.registry = map[string]Method{}
	}

	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		s.registry[buf.String()] = m
		buf.Reset()
	}
	return nil
}

// RegisterMethod registers a single method from a receiver under an
// explicit wire name.
func (s *Server) RegisterMethod(name string, receiver interface{}, methodName string) error {
	if s.registry == nil {
		s.registry = map[string]Method{}
	}
	methods, err := Methods(receiver)
	if err != nil {
		return err
	}
	m, ok := methods[methodName]
	if !ok {
		return fmt.Errorf("no such method: %s", methodName)
	}
	s.registry[name] = m
	return nil
}

// Handle dispatches a request Message and returns the response Message.
// If msg is not a request, Handle returns nil.
func (s *Server) Handle(ctx context.Context, msg *Message) *Message {
	if msg.Request == nil {
		return nil
	}
	resp := &Response{}
	m, ok := s.registry[msg.Request.Method]
	if !ok {
		resp.Error = &ErrResponse{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", msg.Request.Method),
		}
		return &Message{ID: msg.ID, Version: Version, Response: resp}
	}

	res, err := m.CallJSON(ctx, msg.Request.Params)
	if err != nil {
		resp.Error = &ErrResponse{
			Code:    ErrCodeInternal,
			Message: err.Error(),
		}
		return &Message{ID: msg.ID, Version: Version, Response: resp}
	}

	if res != nil {
		result, err := json.Marshal(res)
		if err != nil {
			resp.Error = &ErrResponse{
				Code:    ErrCodeServer,
				Message: fmt.Sprintf("failed to encode response: %s", err),
			}
			return &Message{ID: msg.ID, Version: Version, Response: resp}
		}
		resp.Result = result
	}
	return &Message{ID: msg.ID, Version: Version, Response: resp}
}
