package utils

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode envuelve los fallos de decodificación, para distinguirlos de los del handler.
var ErrDecode = errors.New("failed to unmarshal event data")

// UnmarshalAndHandle decodifica data en T y se lo pasa a handler.
func UnmarshalAndHandle[T any](data json.RawMessage, handler func(T) error) error {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return handler(evt)
}
