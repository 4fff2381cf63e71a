package types

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWagerSettled(t *testing.T) {
	settled := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	w := &Wager{
		ID:        "w-1",
		Player:    common.HexToAddress("0xa1"),
		Stake:     500,
		Choice:    Tails,
		Outcome:   Tails,
		Payout:    975,
		Status:    StatusWon,
		Mode:      ModeDeferred,
		SettledAt: &settled,
	}

	ev := NewWagerSettled(w)
	assert.Equal(t, "w-1", ev.WagerID)
	assert.Equal(t, uint64(975), ev.Payout)
	assert.Equal(t, settled, ev.SettledAt)
}

func TestNewEnvelope(t *testing.T) {
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	env, err := NewEnvelope(EventReserveWithdrawn, "reserve", "", at, ReserveWithdrawn{Amount: 42})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, EventReserveWithdrawn, decoded.Type)
	assert.Equal(t, "reserve", decoded.Key)

	var payload ReserveWithdrawn
	require.NoError(t, json.Unmarshal(decoded.Data, &payload))
	assert.Equal(t, uint64(42), payload.Amount)
}
