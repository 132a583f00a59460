package iri

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const httpContentType = "application/json"

// command issues a single IRI "command" RPC: a POST of a JSON object
// carrying a "command" field plus whatever extra fields the given
// request needs, decoded into result. It mirrors the request/response
// skeleton of a generic JSON-RPC-over-HTTP call -- build request,
// set headers, do, check status, decode -- but speaks IRI's flatter
// envelope instead of a JSON-RPC 2.0 message.
func command(ctx context.Context, client *http.Client, endpoint string, req interface{}, result interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", httpContentType)
	httpReq.Header.Set("Accept", httpContentType)
	httpReq.Header.Set("X-IOTA-API-Version", "1")
	httpReq = httpReq.WithContext(ctx)

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RequestError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("bad status code: %d", resp.StatusCode),
		}
	}

	if result == nil {
		return nil
	}

	var r io.Reader = resp.Body
	if err := json.NewDecoder(r).Decode(result); err != nil {
		return err
	}
	return nil
}

// RequestError is returned when IRI answers an RPC with a non-2xx HTTP
// status. Transport and decoding errors are returned as they are.
type RequestError struct {
	StatusCode int
	Reason     string
}

func (err RequestError) Error() string {
	return fmt.Sprintf("iri rpc request error: %s", err.Reason)
}

type getNeighborsRequest struct {
	Command string `json:"command"`
}

type neighborInfo struct {
	Address        string `json:"address"`
	ConnectionType string `json:"connectionType"`
}

type getNeighborsResponse struct {
	Neighbors []neighborInfo `json:"neighbors"`
	Error     string         `json:"error"`
}

type addNeighborsRequest struct {
	Command string   `json:"command"`
	URIs    []string `json:"uris"`
}

type addNeighborsResponse struct {
	AddedNeighbors int    `json:"addedNeighbors"`
	Error          string `json:"error"`
}

type removeNeighborsRequest struct {
	Command string   `json:"command"`
	URIs    []string `json:"uris"`
}

type removeNeighborsResponse struct {
	RemovedNeighbors int    `json:"removedNeighbors"`
	Error            string `json:"error"`
}
