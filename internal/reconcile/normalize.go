// Package reconcile bridges a terminal's optimistic order view and the
// authoritative order store. Mutations apply locally first, then replay to the
// server in the order the client issued them; the server's answer replaces the
// local view because it owns persisted ids, computed totals, and ordering.
package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"restaurant-pos/internal/models"
)

var (
	// ErrPersistenceUnavailable means the store call failed or timed out; the
	// optimistic view is kept and the caller decides when to retry.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	// ErrMalformedResponse means the server payload could not be normalized
	// even after the fallback parse.
	ErrMalformedResponse = errors.New("malformed server response")

	// ErrNoOpenOrder means the table currently has no order bound to it.
	ErrNoOpenOrder = errors.New("no open order")
)

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// DecodeOrder normalizes a server payload into an order. It accepts a bare
// order object, the standard response envelope, and - because intermediaries
// have been seen serializing twice - a JSON string containing either of those.
// The string fallback is attempted once; a payload that still is not an order
// after that is malformed.
func DecodeOrder(body []byte) (*models.Order, error) {
	return decodeOrder(body, true)
}

func decodeOrder(body []byte, allowReparse bool) (*models.Order, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}

	// Double-encoded payload: the structured response arrived as a JSON string.
	if trimmed[0] == '"' {
		if !allowReparse {
			return nil, fmt.Errorf("%w: payload is a string after reparse", ErrMalformedResponse)
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return decodeOrder([]byte(inner), false)
	}

	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: unexpected payload shape", ErrMalformedResponse)
	}

	// The envelope is detected by its success flag; a bare order has none.
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil && env.Success != nil {
		if !*env.Success {
			return nil, fmt.Errorf("%w: %s", ErrPersistenceUnavailable, env.Message)
		}
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("%w: envelope without data", ErrMalformedResponse)
		}
		return decodeOrder(env.Data, allowReparse)
	}

	var order models.Order
	if err := json.Unmarshal(trimmed, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if order.ID == 0 {
		return nil, fmt.Errorf("%w: order without id", ErrMalformedResponse)
	}
	return &order, nil
}
