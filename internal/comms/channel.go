package comms

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel routes messages between registered agents. Delivery into a
// recipient's queue is priority ordered (stable within a priority) and the
// queue is drained by invoking the recipient's handler for each message.
type Channel struct {
	mu       sync.Mutex
	handlers map[string]Handler
	queues   map[string][]*Message
	draining map[string]bool
	topics   map[string]map[string]bool
	history  []*Message
	pending  map[string]chan *Message
	metrics  Metrics
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{
		handlers: make(map[string]Handler),
		queues:   make(map[string][]*Message),
		draining: make(map[string]bool),
		topics:   make(map[string]map[string]bool),
		pending:  make(map[string]chan *Message),
	}
}

// Register binds a delivery handler to an agent id.
func (c *Channel) Register(agentID string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[agentID] = handler
	if _, ok := c.queues[agentID]; !ok {
		c.queues[agentID] = nil
	}
	slog.Debug("Agent registered on channel", "agent_id", agentID)
}

// Unregister removes the agent's handler, queue, and topic subscriptions.
func (c *Channel) Unregister(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, agentID)
	delete(c.queues, agentID)
	for _, subs := range c.topics {
		delete(subs, agentID)
	}
}

// Registered reports whether an agent id has a handler.
func (c *Channel) Registered(agentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[agentID]
	return ok
}

// SendOptions carries optional send parameters.
type SendOptions struct {
	Type          string
	Priority      Priority
	CorrelationID string
}

// Send delivers content from one agent to another, or to every other
// registered agent when to is empty (broadcast). The returned message is the
// sender-side record; broadcast recipients each get their own copy.
func (c *Channel) Send(from, to string, content any, opts *SendOptions) (*Message, error) {
	msgType := TypeInfo
	priority := PriorityMedium
	correlation := ""
	if opts != nil {
		if opts.Type != "" {
			msgType = opts.Type
		}
		priority = opts.Priority
		correlation = opts.CorrelationID
	}

	c.mu.Lock()
	if _, ok := c.handlers[from]; !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("send from %s: %w", from, ErrSenderNotRegistered)
	}

	if to == "" {
		// Broadcast: rewrite per-recipient.
		recipients := make([]string, 0, len(c.handlers))
		for id := range c.handlers {
			if id != from {
				recipients = append(recipients, id)
			}
		}
		record := &Message{
			ID:        uuid.NewString(),
			From:      from,
			Type:      TypeBroadcast,
			Content:   content,
			Priority:  priority,
			Timestamp: time.Now(),
			Status:    StatusPending,
		}
		c.metrics.Broadcast++
		var queued []string
		for _, id := range recipients {
			m := &Message{
				ID:            uuid.NewString(),
				From:          from,
				To:            id,
				Type:          TypeBroadcast,
				Content:       content,
				Priority:      priority,
				CorrelationID: correlation,
				Timestamp:     record.Timestamp,
				Status:        StatusPending,
			}
			c.enqueueLocked(m)
			queued = append(queued, id)
		}
		record.Status = StatusDelivered
		c.mu.Unlock()

		for _, id := range queued {
			c.drain(id)
		}
		return record, nil
	}

	if _, ok := c.handlers[to]; !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("send to %s: %w", to, ErrRecipientNotRegistered)
	}

	m := &Message{
		ID:            uuid.NewString(),
		From:          from,
		To:            to,
		Type:          msgType,
		Content:       content,
		Priority:      priority,
		CorrelationID: correlation,
		Timestamp:     time.Now(),
		Status:        StatusPending,
	}
	c.enqueueLocked(m)
	c.resolvePendingLocked(m)
	c.mu.Unlock()

	c.drain(to)
	return m, nil
}

// enqueueLocked inserts by descending priority, keeping arrival order within
// a priority band, records history, and counts the send.
func (c *Channel) enqueueLocked(m *Message) {
	q := c.queues[m.To]
	idx := len(q)
	for i, queued := range q {
		if queued.Priority < m.Priority {
			idx = i
			break
		}
	}
	q = append(q, nil)
	copy(q[idx+1:], q[idx:])
	q[idx] = m
	c.queues[m.To] = q

	c.history = append(c.history, m)
	c.metrics.Sent++
}

// drain invokes the recipient's handler for each queued message in order.
// A handler error or panic marks that message failed and is isolated from
// the remaining queue.
func (c *Channel) drain(agentID string) {
	c.mu.Lock()
	if c.draining[agentID] {
		c.mu.Unlock()
		return
	}
	c.draining[agentID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.draining[agentID] = false
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		q := c.queues[agentID]
		handler, registered := c.handlers[agentID]
		if !registered || len(q) == 0 {
			c.mu.Unlock()
			return
		}
		m := q[0]
		c.queues[agentID] = q[1:]
		c.mu.Unlock()

		err := c.invoke(handler, m)

		c.mu.Lock()
		if err != nil {
			m.Status = StatusFailed
			c.metrics.Failed++
			slog.Warn("Message delivery failed", "message_id", m.ID, "to", agentID, "error", err)
		} else {
			m.Status = StatusDelivered
			c.metrics.Received++
		}
		c.mu.Unlock()
	}
}

// invoke runs a handler, converting panics into errors so one bad handler
// cannot crash the channel.
func (c *Channel) invoke(handler Handler, m *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if handler == nil {
		return nil
	}
	return handler(m)
}

// Subscribe adds an agent to a topic.
func (c *Channel) Subscribe(agentID, topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics[topic] == nil {
		c.topics[topic] = make(map[string]bool)
	}
	c.topics[topic][agentID] = true
}

// Unsubscribe removes an agent from a topic.
func (c *Channel) Unsubscribe(agentID, topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics[topic], agentID)
}

// Publish sends an info message to every subscriber except the publisher and
// returns the count actually sent.
func (c *Channel) Publish(topic string, content any, from string) int {
	c.mu.Lock()
	subs := make([]string, 0, len(c.topics[topic]))
	for id := range c.topics[topic] {
		if id != from {
			subs = append(subs, id)
		}
	}
	c.mu.Unlock()

	delivered := 0
	for _, id := range subs {
		if _, err := c.Send(from, id, content, &SendOptions{Type: TypeInfo}); err == nil {
			delivered++
		}
	}
	return delivered
}

// Metrics returns a snapshot of the channel counters.
func (c *Channel) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	for _, q := range c.queues {
		m.Queued += len(q)
	}
	return m
}
