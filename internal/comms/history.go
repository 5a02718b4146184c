package comms

import (
	"sort"
	"time"
)

// HistoryFilter selects messages from the append-only log. Zero values match
// everything.
type HistoryFilter struct {
	From  string
	To    string
	Type  string
	Since time.Time
	Limit int
}

// History returns matching log entries in chronological order.
func (c *Channel) History(f HistoryFilter) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Message
	for _, m := range c.history {
		if f.From != "" && m.From != f.From {
			continue
		}
		if f.To != "" && m.To != f.To {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Conversation returns the chronologically ordered messages exchanged between
// exactly two agents, in either direction.
func (c *Channel) Conversation(a, b string) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Message
	for _, m := range c.history {
		if (m.From == a && m.To == b) || (m.From == b && m.To == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
