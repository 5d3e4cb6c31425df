package streaming

import (
	"encoding/json"
)

// Message type constants for outbound notifications.
const (
	TypeStateChange   = "state_change"
	TypeWaveStart     = "wave_start"
	TypeWaveBreak     = "wave_break"
	TypeHordeComplete = "horde_complete"
	TypeMiniHorde     = "mini_horde"
	TypeVoteStarted   = "vote_started"
	TypeVoteUpdate    = "vote_update"
	TypeVotePassed    = "vote_passed"
	TypeVoteFailed    = "vote_failed"

	// TypeHello opens a remote stream and is replayed after reconnects.
	TypeHello = "hello"
)

// Envelope wraps every message sent to remote listeners.
type Envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Recipients []string        `json:"recipients,omitempty"`
}

// AckMessage is sent by a remote listener to confirm a hello.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// HelloPayload identifies the world a stream belongs to.
type HelloPayload struct {
	World   string `json:"world"`
	Session string `json:"session"`
}

// StateChangePayload is broadcast on every siege state transition.
// Optional fields are only set for the transitions that carry them.
type StateChangePayload struct {
	State         string `json:"state"`
	SiegeCount    *int   `json:"siegeCount,omitempty"`
	Direction     string `json:"direction,omitempty"`
	TargetZombies *int   `json:"targetZombies,omitempty"`
	TotalWaves    *int   `json:"totalWaves,omitempty"`
	SpawnedTotal  *int   `json:"spawnedTotal,omitempty"`
	Kills         *int   `json:"killsThisSiege,omitempty"`
	BonusKills    *int   `json:"bonusKills,omitempty"`
	SpecialKills  *int   `json:"specialKills,omitempty"`
	DawnFallback  *bool  `json:"dawnFallback,omitempty"`
	NextSiegeDay  *int   `json:"nextSiegeDay,omitempty"`
}

// WaveStartPayload announces the burst of a wave.
type WaveStartPayload struct {
	WaveIndex  int `json:"waveIndex"`
	TotalWaves int `json:"totalWaves"`
}

// WaveBreakPayload announces a spawn-free pause.
type WaveBreakPayload struct {
	WaveIndex    int `json:"waveIndex"`
	TotalWaves   int `json:"totalWaves"`
	BreakSeconds int `json:"breakSeconds"`
}

// HordeCompletePayload is sent once every planned enemy has spawned.
type HordeCompletePayload struct {
	TargetZombies int `json:"targetZombies"`
	KillsSoFar    int `json:"killsSoFar"`
}

// MiniHordePayload is the proximity announcement of an ambient horde.
type MiniHordePayload struct {
	Count     int    `json:"count"`
	Direction string `json:"direction"`
}

// VoteStartedPayload opens a vote.
type VoteStartedPayload struct {
	Needed int `json:"needed"`
}

// VoteUpdatePayload reports progress of the open vote.
type VoteUpdatePayload struct {
	Current int `json:"current"`
	Needed  int `json:"needed"`
}

// VotePassedPayload and VoteFailedPayload carry no data.
type VotePassedPayload struct{}
type VoteFailedPayload struct{}

// IntPtr and BoolPtr help fill optional payload fields.
func IntPtr(v int) *int    { return &v }
func BoolPtr(v bool) *bool { return &v }

// Marshal builds a JSON envelope for the given type and payload.
func Marshal(msgType string, payload any, recipients []string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw, Recipients: recipients})
}
