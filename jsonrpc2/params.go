package jsonrpc2

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// parsePositionalArguments takes the params of a JSONRPC message and
// decodes each positional element into the reflected value of its
// corresponding type. It only supports positional (array) params.
func parsePositionalArguments(rawParams json.RawMessage, types []reflect.Type) ([]reflect.Value, error) {
	if len(types) == 0 {
		return nil, nil
	}
	if len(rawParams) == 0 {
		return nil, fmt.Errorf("no params given, expected %d", len(types))
	}
	if !isArray(rawParams) {
		return nil, fmt.Errorf("params must be a positional array")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(rawParams, &raw); err != nil {
		return nil, err
	}
	if len(raw) != len(types) {
		return nil, fmt.Errorf("invalid number of params: expected %d, got %d", len(types), len(raw))
	}

	values := make([]reflect.Value, len(types))
	for i, t := range raw {
		ptr := reflect.New(types[i])
		if err := json.Unmarshal(t, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("failed to decode param %d: %w", i, err)
		}
		values[i] = ptr.Elem()
	}
	return values, nil
}
