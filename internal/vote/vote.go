// Package vote coordinates the single global vote participants use to call a
// siege early.
package vote

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hordenight/siege/internal/notify"
	"github.com/hordenight/siege/pkg/streaming"
)

var (
	ErrSiegeInProgress = errors.New("a siege is already in progress")
	ErrVoteActive      = errors.New("a vote is already running")
	ErrNoVote          = errors.New("no vote is running")
	ErrDuplicateVote   = errors.New("already voted")
)

// Outcome is the immediate result of starting a vote or casting a ballot.
type Outcome int

const (
	OutcomeRecorded Outcome = iota
	OutcomePassed
)

// Session is the open vote.
type Session struct {
	ID           uuid.UUID
	Voters       map[string]bool
	Needed       int
	Elapsed      int
	TimeoutTicks int
}

// Count returns the number of distinct votes.
func (s *Session) Count() int {
	return len(s.Voters)
}

// Quorum returns the votes needed with connected participants.
func Quorum(connected int) int {
	return max(1, (connected+1)/2)
}

// Coordinator owns the vote slot.
type Coordinator struct {
	session  *Session
	notifier notify.Notifier
	onPass   func()
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator calling onPass when a vote passes.
func NewCoordinator(notifier notify.Notifier, logger *slog.Logger, onPass func()) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{notifier: notifier, onPass: onPass, logger: logger}
}

// Session returns the open vote, or nil.
func (c *Coordinator) Session() *Session {
	return c.session
}

// Start opens a vote with the starter's ballot already counted. A lone
// participant, or a starter who alone meets quorum, passes immediately.
func (c *Coordinator) Start(starter string, connected, timeoutTicks int, sieging bool) (Outcome, error) {
	if sieging {
		return OutcomeRecorded, ErrSiegeInProgress
	}
	if c.session != nil {
		return OutcomeRecorded, ErrVoteActive
	}

	needed := Quorum(connected)
	if connected <= 1 {
		c.logger.Info("Single participant, skipping vote", "starter", starter)
		c.pass()
		return OutcomePassed, nil
	}

	c.session = &Session{
		ID:           uuid.New(),
		Voters:       map[string]bool{starter: true},
		Needed:       needed,
		TimeoutTicks: timeoutTicks,
	}
	c.logger.Info("Vote started", "vote", c.session.ID, "starter", starter, "needed", needed)
	c.notifier.Broadcast(streaming.TypeVoteStarted, streaming.VoteStartedPayload{Needed: needed})
	c.notifier.Broadcast(streaming.TypeVoteUpdate, streaming.VoteUpdatePayload{Current: 1, Needed: needed})

	if c.session.Count() >= needed {
		c.pass()
		return OutcomePassed, nil
	}
	return OutcomeRecorded, nil
}

// Cast records a ballot. Repeat ballots are rejected and not counted.
func (c *Coordinator) Cast(voter string) (Outcome, error) {
	if c.session == nil {
		return OutcomeRecorded, ErrNoVote
	}
	if c.session.Voters[voter] {
		return OutcomeRecorded, ErrDuplicateVote
	}
	c.session.Voters[voter] = true
	c.notifier.Broadcast(streaming.TypeVoteUpdate, streaming.VoteUpdatePayload{
		Current: c.session.Count(),
		Needed:  c.session.Needed,
	})

	if c.session.Count() >= c.session.Needed {
		c.pass()
		return OutcomePassed, nil
	}
	return OutcomeRecorded, nil
}

// Tick ages the open vote and fails it at the timeout.
func (c *Coordinator) Tick() {
	if c.session == nil {
		return
	}
	c.session.Elapsed++
	if c.session.Elapsed < c.session.TimeoutTicks {
		return
	}
	c.logger.Info("Vote failed, timed out", "vote", c.session.ID, "votes", c.session.Count(), "needed", c.session.Needed)
	c.session = nil
	c.notifier.Broadcast(streaming.TypeVoteFailed, streaming.VoteFailedPayload{})
}

// Cancel drops the open vote without announcing a result.
func (c *Coordinator) Cancel() {
	c.session = nil
}

func (c *Coordinator) pass() {
	if c.session != nil {
		c.logger.Info("Vote passed", "vote", c.session.ID, "votes", c.session.Count())
	}
	c.session = nil
	c.notifier.Broadcast(streaming.TypeVotePassed, streaming.VotePassedPayload{})
	if c.onPass != nil {
		c.onPass()
	}
}
