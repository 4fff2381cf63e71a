package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/mselser95/coinflip/pkg/types"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleSink pretty-prints events for operators watching a terminal.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink writes to out.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

func (c *ConsoleSink) Name() string { return "console" }

// Publish renders env as a block of text.
func (c *ConsoleSink) Publish(_ context.Context, env types.Envelope) error {
	var b strings.Builder

	switch env.Type {
	case types.EventWagerSettled:
		var ev types.WagerSettled
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode settlement: %w", err)
		}
		marker := "LOST"
		if ev.Status == types.StatusWon {
			marker = "WON"
		}
		fmt.Fprintf(&b, "%s\nWAGER %s  %s\n%s\n", rule, ev.WagerID, marker, rule)
		fmt.Fprintf(&b, "Player:  %s\n", ev.Player.Hex())
		fmt.Fprintf(&b, "Stake:   %d on %s\n", ev.Stake, ev.Choice)
		fmt.Fprintf(&b, "Outcome: %s\n", ev.Outcome)
		fmt.Fprintf(&b, "Payout:  %d\n", ev.Payout)
		fmt.Fprintf(&b, "Mode:    %s\n", ev.Mode)

	case types.EventParametersChanged:
		var ev types.ParametersChanged
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode parameters: %w", err)
		}
		fmt.Fprintf(&b, "%s\nPARAMETERS CHANGED by %s\n", rule, ev.ChangedBy.Hex())
		fmt.Fprintf(&b, "Coefficient: %s×\n", types.Multiplier(ev.Coefficient))
		fmt.Fprintf(&b, "Stake:       %d .. %d\n", ev.MinStake, ev.MaxStake)

	case types.EventReserveWithdrawn:
		var ev types.ReserveWithdrawn
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return fmt.Errorf("decode withdrawal: %w", err)
		}
		fmt.Fprintf(&b, "%s\nRESERVE WITHDRAWN %d to %s\n", rule, ev.Amount, ev.To.Hex())

	default:
		fmt.Fprintf(&b, "%s\n%s %s\n", rule, env.Type, env.Data)
	}
	b.WriteString(rule + "\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *ConsoleSink) Close() error { return nil }
