package jsonrpc2

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
)

// Message is the envelope exchanged over a Codec. It is always exactly one
// of a Request or a Response, tagged by ID. Request and Response are kept
// as separate pointer fields (rather than flattened) so that a Handler
// can check which one is set.
type Message struct {
	ID       json.RawMessage `json:"id,omitempty"`
	Version  string          `json:"jsonrpc"`
	Request  *Request        `json:"-"`
	Response *Response       `json:"-"`
}

// MarshalJSON flattens the Message into the wire format: a request has a
// method/params, a response has a result/error.
func (msg Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID      json.RawMessage `json:"id,omitempty"`
		Version string          `json:"jsonrpc"`
		Method  string          `json:"method,omitempty"`
		Params  json.RawMessage `json:"params,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *ErrResponse    `json:"error,omitempty"`
	}
	w := wire{ID: msg.ID, Version: Version}
	if msg.Request != nil {
		w.Method = msg.Request.Method
		w.Params = msg.Request.Params
	}
	if msg.Response != nil {
		w.Result = msg.Response.Result
		w.Error = msg.Response.Error
	}
	return json.Marshal(w)
}

// UnmarshalJSON splits the flattened wire format back into Request/Response.
func (msg *Message) UnmarshalJSON(data []byte) error {
	var w struct {
		ID      json.RawMessage `json:"id,omitempty"`
		Version string          `json:"jsonrpc"`
		Method  string          `json:"method,omitempty"`
		Params  json.RawMessage `json:"params,omitempty"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *ErrResponse    `json:"error,omitempty"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	msg.ID = w.ID
	msg.Version = w.Version
	if w.Method != "" {
		msg.Request = &Request{Method: w.Method, Params: w.Params}
	}
	if w.Result != nil || w.Error != nil {
		msg.Response = &Response{Result: w.Result, Error: w.Error}
	}
	return nil
}

type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// UnmarshalResult decodes the Response's Result into into, or returns the
// Response's Error if one was set.
func (r *Response) UnmarshalResult(into interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return nil
	}
	return json.Unmarshal(r.Result, into)
}

type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrResponse    `json:"error,omitempty"`
}

type ErrResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (err *ErrResponse) Error() string {
	return fmt.Sprintf("%d: %s", err.Code, err.Message)
}
