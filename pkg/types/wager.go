package types

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Choice is a binary prediction or resolved outcome. Only Heads and Tails are admissible.
type Choice uint8

const (
	Heads Choice = 0
	Tails Choice = 1
)

// Valid reports whether c is one of the two admissible values.
func (c Choice) Valid() bool {
	return c == Heads || c == Tails
}

func (c Choice) String() string {
	switch c {
	case Heads:
		return "heads"
	case Tails:
		return "tails"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(c))
	}
}

// Status is the lifecycle state of a wager. Won and Lost are terminal.
type Status uint8

const (
	StatusPending Status = 0
	StatusWon     Status = 1
	StatusLost    Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Mode selects how wagers are settled.
type Mode string

const (
	ModeSync     Mode = "sync"
	ModeDeferred Mode = "deferred"
)

// Wager is one placed bet. Player, Stake, Choice and Coefficient never change after creation.
type Wager struct {
	ID              string         `json:"id"`
	Sequence        uint64         `json:"sequence"`
	Mode            Mode           `json:"mode"`
	Player          common.Address `json:"player"`
	Stake           uint64         `json:"stake"`
	Choice          Choice         `json:"choice"`
	Coefficient     uint64         `json:"coefficient"`      // snapshot at placement, hundredths
	PotentialPayout uint64         `json:"potential_payout"` // payout if won
	Status          Status         `json:"status"`
	Outcome         Choice         `json:"outcome"`
	Payout          uint64         `json:"payout"`
	CreatedAt       time.Time      `json:"created_at"`
	SettledAt       *time.Time     `json:"settled_at,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (w *Wager) Clone() *Wager {
	if w == nil {
		return nil
	}
	c := *w
	if w.SettledAt != nil {
		t := *w.SettledAt
		c.SettledAt = &t
	}
	return &c
}

// Payout computes stake*coefficient/100 with truncation.
// Returns ErrPayoutOverflow if the result does not fit in 64 bits.
func Payout(stake uint64, coefficient uint64) (uint64, error) {
	hi, lo := bits.Mul64(stake, coefficient)
	if hi >= 100 {
		return 0, fmt.Errorf("stake %d * coefficient %d: %w", stake, coefficient, ErrPayoutOverflow)
	}
	quo, _ := bits.Div64(hi, lo, 100)
	return quo, nil
}

// Multiplier renders a hundredths coefficient as a decimal multiplier, e.g. 195 -> "1.95".
func Multiplier(coefficient uint64) string {
	return decimal.New(int64(coefficient), -2).StringFixed(2)
}
