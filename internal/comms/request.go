package comms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestPayload is the content shape of a request-typed message.
type RequestPayload struct {
	Action string `json:"action"`
	Params any    `json:"params,omitempty"`
}

// ResponsePayload is the content shape of a response-typed message.
type ResponsePayload struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Request sends a request-typed message carrying a fresh correlation id and
// blocks until a matching response arrives or the timeout elapses. Concurrent
// outstanding requests are independent; resolving one never affects another.
func (c *Channel) Request(ctx context.Context, from, to, action string, params any, timeout time.Duration) (any, error) {
	correlation := uuid.NewString()
	future := make(chan *Message, 1)

	c.mu.Lock()
	c.pending[correlation] = future
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, correlation)
		c.mu.Unlock()
	}()

	_, err := c.Send(from, to, RequestPayload{Action: action, Params: params}, &SendOptions{
		Type:          TypeRequest,
		Priority:      PriorityHigh,
		CorrelationID: correlation,
	})
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-future:
		payload, ok := m.Content.(ResponsePayload)
		if !ok {
			return m.Content, nil
		}
		if payload.Error != "" {
			return nil, fmt.Errorf("request %s to %s: %s", action, to, payload.Error)
		}
		return payload.Result, nil
	case <-timer.C:
		return nil, fmt.Errorf("request %s to %s after %s: %w", action, to, timeout, ErrRequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Respond sends a response-typed message that resolves the requester's
// pending future for the given correlation id.
func (c *Channel) Respond(from, to, correlationID string, result any, errText string) error {
	_, err := c.Send(from, to, ResponsePayload{Result: result, Error: errText}, &SendOptions{
		Type:          TypeResponse,
		Priority:      PriorityHigh,
		CorrelationID: correlationID,
	})
	return err
}

// resolvePendingLocked completes an outstanding request future when a
// response message with a matching correlation id is sent. Callers hold the
// channel lock.
func (c *Channel) resolvePendingLocked(m *Message) {
	if m.Type != TypeResponse || m.CorrelationID == "" {
		return
	}
	if future, ok := c.pending[m.CorrelationID]; ok {
		select {
		case future <- m:
		default:
		}
		delete(c.pending, m.CorrelationID)
	}
}
