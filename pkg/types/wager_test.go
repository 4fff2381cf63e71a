package types

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name        string
		stake       uint64
		coefficient uint64
		want        uint64
		wantErr     error
	}{
		{name: "default-coefficient", stake: 500, coefficient: 195, want: 975},
		{name: "truncates", stake: 101, coefficient: 195, want: 196}, // 196.95
		{name: "zero-stake", stake: 0, coefficient: 195, want: 0},
		{name: "max-default-stake", stake: 1_000_000_000_000_000_000, coefficient: 199, want: 1_990_000_000_000_000_000},
		{name: "overflow", stake: math.MaxUint64, coefficient: 199, wantErr: ErrPayoutOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Payout(tt.stake, tt.coefficient)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChoice_Valid(t *testing.T) {
	assert.True(t, Heads.Valid())
	assert.True(t, Tails.Valid())
	assert.False(t, Choice(3).Valid())
	assert.Equal(t, "invalid(3)", Choice(3).String())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusWon.Terminal())
	assert.True(t, StatusLost.Terminal())
}

func TestMultiplier(t *testing.T) {
	assert.Equal(t, "1.95", Multiplier(195))
	assert.Equal(t, "1.01", Multiplier(101))
	assert.Equal(t, "1.50", Multiplier(150))
}

func TestWager_Clone(t *testing.T) {
	settled := time.Now()
	w := &Wager{ID: "1", Stake: 500, SettledAt: &settled}

	c := w.Clone()
	c.Stake = 1
	*c.SettledAt = settled.Add(time.Hour)

	assert.Equal(t, uint64(500), w.Stake)
	assert.Equal(t, settled, *w.SettledAt)
	assert.Nil(t, (*Wager)(nil).Clone())
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("place wager: %w", Reject("place-wager", ErrStakeOutOfRange, "stake 10 below 100"))

	assert.Equal(t, CodeStakeOutOfRange, CodeOf(wrapped))
	assert.Equal(t, CodeAlreadySettled, CodeOf(ErrAlreadySettled))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestSettlementError_Error(t *testing.T) {
	err := &SettlementError{Op: "confirm", WagerID: "abc", Err: ErrAlreadySettled}
	assert.Equal(t, "confirm: already settled (wager abc)", err.Error())
	assert.ErrorIs(t, err, ErrAlreadySettled)

	err = Reject("withdraw", ErrInsufficientReserve, "available 10")
	assert.Equal(t, "withdraw: insufficient reserve: available 10", err.Error())
}
