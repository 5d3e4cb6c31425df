// pkg/core/siege.go
package core

// SiegeState is the top-level state of the siege cycle.
type SiegeState string

const (
	StateIdle    SiegeState = "IDLE"
	StateWarning SiegeState = "WARNING"
	StateActive  SiegeState = "ACTIVE"
	StateDawn    SiegeState = "DAWN"
)

// Sieging reports whether heat and mini-horde activity is suspended.
func (s SiegeState) Sieging() bool {
	return s == StateWarning || s == StateActive
}

// Phase is the spawn engine's position inside a wave.
type Phase string

const (
	PhaseWave     Phase = "WAVE"
	PhaseTrickle  Phase = "TRICKLE"
	PhaseBreak    Phase = "BREAK"
	PhaseComplete Phase = "COMPLETE"
)

// HistoryLimit is the number of completed sieges kept in a record.
const HistoryLimit = 20

// HistoryEntry summarises one completed siege.
type HistoryEntry struct {
	Kills     int       `json:"kills"`
	Bonus     int       `json:"bonus"`
	Specials  int       `json:"specials"`
	Spawned   int       `json:"spawned"`
	Target    int       `json:"target"`
	Day       int       `json:"day"`
	Direction Direction `json:"direction"`
}

// History is an ordered, capped list of completed sieges, oldest first.
type History struct {
	entries []HistoryEntry
}

// NewHistory builds a history from stored entries, keeping only the newest HistoryLimit.
func NewHistory(entries []HistoryEntry) History {
	h := History{}
	for _, e := range entries {
		h.Push(e)
	}
	return h
}

// Push appends an entry and evicts the oldest when over the limit.
func (h *History) Push(e HistoryEntry) {
	h.entries = append(h.entries, e)
	if over := len(h.entries) - HistoryLimit; over > 0 {
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
}

// Len returns the number of stored entries.
func (h History) Len() int { return len(h.entries) }

// Entries returns a copy of the entries, oldest first.
func (h History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Latest returns the most recent entry.
func (h History) Latest() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// SiegeRecord is the persisted, per-world siege document.
type SiegeRecord struct {
	State                 SiegeState
	SiegeCount            int
	NextSiegeDay          int
	LastDirection         Direction
	SpawnedThisSiege      int
	TargetZombies         int
	KillsThisSiege        int
	BonusKills            int
	SpecialKillsThisSiege int
	TanksSpawned          int
	CurrentWaveIndex      int
	CurrentPhase          Phase
	TotalSiegesCompleted  int
	TotalKillsAllTime     int
	History               History
}

// NewSiegeRecord returns the record a fresh world starts with.
func NewSiegeRecord(frequencyDays int) *SiegeRecord {
	return &SiegeRecord{
		State:         StateIdle,
		NextSiegeDay:  frequencyDays,
		LastDirection: -1,
		CurrentPhase:  PhaseComplete,
	}
}

// TotalKills counts tagged and bonus kills towards the siege target.
func (r *SiegeRecord) TotalKills() int {
	return r.KillsThisSiege + r.BonusKills
}

// ResetSiegeCounters clears every per-siege counter.
func (r *SiegeRecord) ResetSiegeCounters() {
	r.SpawnedThisSiege = 0
	r.TargetZombies = 0
	r.KillsThisSiege = 0
	r.BonusKills = 0
	r.SpecialKillsThisSiege = 0
	r.TanksSpawned = 0
	r.CurrentWaveIndex = 0
	r.CurrentPhase = PhaseWave
}
