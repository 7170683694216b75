package model

import (
	"encoding/json"
	"errors"
)

// ErrUnsuccessful is returned for an envelope that decoded fine but carries
// "success": false.
var ErrUnsuccessful = errors.New("envelope reports success=false")

// Envelope is the {"data": ...} wrapper both services put around payloads.
// Success is only sent by capy.lol and stays nil for X responses.
type Envelope[T any] struct {
	Success *bool `json:"success,omitempty"`
	Data    T     `json:"data"`
}

// DecodeEnvelope unwraps body into the payload type T.
func DecodeEnvelope[T any](body []byte) (T, error) {
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		var zero T
		return zero, err
	}
	if env.Success != nil && !*env.Success {
		var zero T
		return zero, ErrUnsuccessful
	}
	return env.Data, nil
}
