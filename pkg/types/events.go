package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
)

// WagerSettled is emitted once per wager reaching a terminal state.
type WagerSettled struct {
	WagerID   string         `json:"wager_id"`
	Player    common.Address `json:"player"`
	Stake     uint64         `json:"stake"`
	Choice    Choice         `json:"choice"`
	Outcome   Choice         `json:"outcome"`
	Payout    uint64         `json:"payout"`
	Status    Status         `json:"status"`
	Mode      Mode           `json:"mode"`
	SettledAt time.Time      `json:"settled_at"`
}

// NewWagerSettled builds the settlement event for a terminal wager.
func NewWagerSettled(w *Wager) WagerSettled {
	ev := WagerSettled{
		WagerID: w.ID,
		Player:  w.Player,
		Stake:   w.Stake,
		Choice:  w.Choice,
		Outcome: w.Outcome,
		Payout:  w.Payout,
		Status:  w.Status,
		Mode:    w.Mode,
	}
	if w.SettledAt != nil {
		ev.SettledAt = *w.SettledAt
	}
	return ev
}

// ParametersChanged is emitted after every accepted parameter update.
type ParametersChanged struct {
	Coefficient uint64         `json:"coefficient"`
	MinStake    uint64         `json:"min_stake"`
	MaxStake    uint64         `json:"max_stake"`
	ChangedBy   common.Address `json:"changed_by"`
	ChangedAt   time.Time      `json:"changed_at"`
}

// ReserveWithdrawn is emitted after an administrator withdrawal.
type ReserveWithdrawn struct {
	To          common.Address `json:"to"`
	Amount      uint64         `json:"amount"`
	WithdrawnAt time.Time      `json:"withdrawn_at"`
}

// Event types carried in an Envelope.
const (
	EventWagerSettled      = "wager-settled"
	EventParametersChanged = "parameters-changed"
	EventReserveWithdrawn  = "reserve-withdrawn"
)

// Envelope is the published form of an event. Key orders related events
// (the wager identity for settlements).
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Player     string          `json:"player,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope encodes payload into an Envelope.
func NewEnvelope(eventType string, key string, player string, at time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		Type:       eventType,
		Key:        key,
		Player:     player,
		OccurredAt: at,
		Data:       data,
	}, nil
}
