// Package handlers binds the siege chat commands to the director.
package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hordenight/siege/internal/dispatcher"
	"github.com/hordenight/siege/internal/logging"
	"github.com/hordenight/siege/internal/siege"
	"github.com/hordenight/siege/internal/util"
	"github.com/hordenight/siege/internal/vote"
	"github.com/hordenight/siege/pkg/core"
)

// Inbound command names.
const (
	CmdSiegeStart   = "CmdSiegeStart"
	CmdSiegeStop    = "CmdSiegeStop"
	CmdSiegeVote    = "CmdSiegeVote"
	CmdSiegeVoteYes = "CmdSiegeVoteYes"
	CmdSiegeStatus  = "CmdSiegeStatus"
)

// Director is the part of the siege director the handlers drive.
type Director interface {
	ForceStart(caller string) error
	ForceStop(caller string) error
	StartVote(caller string) (vote.Outcome, error)
	CastVote(caller string) (vote.Outcome, error)
	Status() siege.Status
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Director   Director
	LogManager *logging.SlogManager
}

// Service turns dispatcher events into director calls and chat replies.
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	s := &Service{deps: deps}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// Register adds every siege command to d. Start and stop are admin only.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdSiegeStart, s.SiegeStart, dispatcher.Privileged(), dispatcher.Logged())
	d.Register(CmdSiegeStop, s.SiegeStop, dispatcher.Privileged(), dispatcher.Logged())
	d.Register(CmdSiegeVote, s.SiegeVote, dispatcher.Logged())
	d.Register(CmdSiegeVoteYes, s.SiegeVoteYes, dispatcher.Logged())
	d.Register(CmdSiegeStatus, s.SiegeStatus)
}

// SiegeStart forces a siege to begin now.
func (s *Service) SiegeStart(e dispatcher.Event) (any, error) {
	caller := util.CleanArg(e.Caller)
	if err := s.deps.Director.ForceStart(caller); err != nil {
		s.writeLog(CmdSiegeStart, fmt.Sprintf("rejected for %s: %v", caller, err), "WARN")
		return nil, err
	}
	s.writeLog(CmdSiegeStart, "siege forced by "+caller, "INFO")
	return "Siege started.", nil
}

// SiegeStop ends a running siege or cancels its warning.
func (s *Service) SiegeStop(e dispatcher.Event) (any, error) {
	caller := util.CleanArg(e.Caller)
	if err := s.deps.Director.ForceStop(caller); err != nil {
		s.writeLog(CmdSiegeStop, fmt.Sprintf("rejected for %s: %v", caller, err), "WARN")
		return nil, err
	}
	s.writeLog(CmdSiegeStop, "siege stopped by "+caller, "INFO")
	return "Siege stopped.", nil
}

// SiegeVote opens a vote to start the siege early.
func (s *Service) SiegeVote(e dispatcher.Event) (any, error) {
	out, err := s.deps.Director.StartVote(util.CleanArg(e.Caller))
	if err != nil {
		return nil, err
	}
	return voteReply(out, s.deps.Director.Status()), nil
}

// SiegeVoteYes records a yes vote.
func (s *Service) SiegeVoteYes(e dispatcher.Event) (any, error) {
	out, err := s.deps.Director.CastVote(util.CleanArg(e.Caller))
	if err != nil {
		return nil, err
	}
	return voteReply(out, s.deps.Director.Status()), nil
}

// SiegeStatus summarizes the director for chat.
func (s *Service) SiegeStatus(dispatcher.Event) (any, error) {
	st := s.deps.Director.Status()
	if !st.Loaded {
		return nil, siege.ErrNotReady
	}
	return FormatStatus(st), nil
}

func voteReply(out vote.Outcome, st siege.Status) string {
	if out == vote.OutcomePassed {
		return "Vote passed, the siege begins."
	}
	return fmt.Sprintf("Vote recorded (%d/%d).", st.VoteCurrent, st.VoteNeeded)
}

// FormatStatus renders a status snapshot as a single chat line.
func FormatStatus(st siege.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", st.Time, st.State)
	switch st.State {
	case core.StateIdle:
		fmt.Fprintf(&b, " | next siege on day %d | %d completed", st.NextSiegeDay, st.Completed)
		if st.HottestCell != "" {
			fmt.Fprintf(&b, " | hottest cell %s at %.0f", st.HottestCell, st.HottestHeat)
		}
	case core.StateWarning:
		fmt.Fprintf(&b, " | siege #%d at dusk", st.SiegeCount+1)
	case core.StateActive:
		fmt.Fprintf(&b, " | siege #%d from %s | kills %d/%d | spawned %d | wave %d/%d %s",
			st.SiegeCount, st.Direction, st.Kills+st.BonusKills, st.Target, st.Spawned,
			st.Wave, st.TotalWaves, strings.ToLower(string(st.Phase)))
	case core.StateDawn:
		fmt.Fprintf(&b, " | siege #%d ending | kills %d/%d", st.SiegeCount, st.Kills+st.BonusKills, st.Target)
	}
	if st.VoteNeeded > 0 {
		fmt.Fprintf(&b, " | vote %d/%d", st.VoteCurrent, st.VoteNeeded)
	}
	return b.String()
}

// IsUserError reports whether err is a rejection the caller should see
// verbatim rather than an internal failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		dispatcher.ErrNotPermitted,
		siege.ErrSiegeActive, siege.ErrNoSiege, siege.ErrNotReady, siege.ErrVoteDisabled,
		vote.ErrSiegeInProgress, vote.ErrVoteActive, vote.ErrNoVote, vote.ErrDuplicateVote,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
