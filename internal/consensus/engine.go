// Package consensus implements weighted multi-agent voting on a topic.
package consensus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Vote status constants.
const (
	StatusVoting = "voting"
	StatusClosed = "closed"
)

// Engine errors.
var (
	ErrVoteNotFound   = errors.New("vote not found")
	ErrNotParticipant = errors.New("agent is not a participant")
	ErrAlreadyClosed  = errors.New("vote already closed")
	ErrNoVotesCast    = errors.New("no votes cast")
)

// Ballot is one participant's recorded vote. Re-voting overwrites it.
type Ballot struct {
	Choice string  `json:"choice"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason,omitempty"`
}

// Result is the aggregated outcome of a closed vote.
type Result struct {
	Decision    string             `json:"decision"`
	Confidence  float64            `json:"confidence"`
	TotalWeight float64            `json:"total_weight"`
	ByChoice    map[string]float64 `json:"by_choice"`
	VoterCount  int                `json:"voter_count"`
}

// Vote is a single consensus round. Immutable after close.
type Vote struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	Status       string            `json:"status"`
	Initiator    string            `json:"initiator"`
	Participants map[string]bool   `json:"participants"`
	Ballots      map[string]Ballot `json:"ballots"`
	Result       *Result           `json:"result,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
}

// Config tunes the engine.
type Config struct {
	// MinParticipation is the fraction of participants that must vote before
	// Close is allowed. 0 disables the quorum: any nonzero vote count closes.
	MinParticipation float64 `json:"minParticipation" envconfig:"CONSENSUS_MIN_PARTICIPATION"`
}

// Engine runs consensus votes.
type Engine struct {
	mu    sync.Mutex
	votes map[string]*Vote
	cfg   Config
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{votes: make(map[string]*Vote), cfg: cfg}
}

// Initiate opens a vote on a topic.
func (e *Engine) Initiate(topic, initiator string, participants []string) *Vote {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := &Vote{
		ID:           uuid.NewString(),
		Topic:        topic,
		Status:       StatusVoting,
		Initiator:    initiator,
		Participants: make(map[string]bool, len(participants)),
		Ballots:      make(map[string]Ballot),
		CreatedAt:    time.Now(),
	}
	for _, p := range participants {
		v.Participants[p] = true
	}
	e.votes[v.ID] = v
	return e.snapshotLocked(v.ID)
}

// CastVote records a participant's weighted ballot, overwriting any prior
// ballot from the same agent.
func (e *Engine) CastVote(voteID, agentID, choice string, weight float64, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.votes[voteID]
	if !ok {
		return fmt.Errorf("cast vote %s: %w", voteID, ErrVoteNotFound)
	}
	if v.Status != StatusVoting {
		return fmt.Errorf("cast vote %s: %w", voteID, ErrAlreadyClosed)
	}
	if !v.Participants[agentID] {
		return fmt.Errorf("cast vote %s by %s: %w", voteID, agentID, ErrNotParticipant)
	}
	v.Ballots[agentID] = Ballot{Choice: choice, Weight: weight, Reason: reason}
	return nil
}

// Close aggregates the recorded ballots: weights sum per choice, the
// highest-weighted choice wins, and confidence is the winning weight over
// the total cast weight.
func (e *Engine) Close(voteID string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.votes[voteID]
	if !ok {
		return nil, fmt.Errorf("close vote %s: %w", voteID, ErrVoteNotFound)
	}
	if v.Status != StatusVoting {
		return nil, fmt.Errorf("close vote %s: %w", voteID, ErrAlreadyClosed)
	}
	if len(v.Ballots) == 0 {
		return nil, fmt.Errorf("close vote %s: %w", voteID, ErrNoVotesCast)
	}
	if e.cfg.MinParticipation > 0 && len(v.Participants) > 0 {
		frac := float64(len(v.Ballots)) / float64(len(v.Participants))
		if frac < e.cfg.MinParticipation {
			return nil, fmt.Errorf("close vote %s: participation %.2f below required %.2f",
				voteID, frac, e.cfg.MinParticipation)
		}
	}

	byChoice := make(map[string]float64)
	total := 0.0
	for _, b := range v.Ballots {
		byChoice[b.Choice] += b.Weight
		total += b.Weight
	}

	decision := ""
	best := -1.0
	for choice, weight := range byChoice {
		if weight > best || (weight == best && choice < decision) {
			decision = choice
			best = weight
		}
	}

	res := &Result{
		Decision:    decision,
		TotalWeight: total,
		ByChoice:    byChoice,
		VoterCount:  len(v.Ballots),
	}
	if total > 0 {
		res.Confidence = best / total
	}

	now := time.Now()
	v.Status = StatusClosed
	v.Result = res
	v.ClosedAt = &now
	return res, nil
}

// Get returns a copy of one vote.
func (e *Engine) Get(voteID string) (*Vote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.votes[voteID]; !ok {
		return nil, fmt.Errorf("get vote %s: %w", voteID, ErrVoteNotFound)
	}
	return e.snapshotLocked(voteID), nil
}

// List returns copies of all votes.
func (e *Engine) List() []*Vote {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Vote, 0, len(e.votes))
	for id := range e.votes {
		out = append(out, e.snapshotLocked(id))
	}
	return out
}

func (e *Engine) snapshotLocked(id string) *Vote {
	v := e.votes[id]
	cp := *v
	cp.Participants = make(map[string]bool, len(v.Participants))
	for k, b := range v.Participants {
		cp.Participants[k] = b
	}
	cp.Ballots = make(map[string]Ballot, len(v.Ballots))
	for k, b := range v.Ballots {
		cp.Ballots[k] = b
	}
	if v.Result != nil {
		r := *v.Result
		cp.Result = &r
	}
	return &cp
}
