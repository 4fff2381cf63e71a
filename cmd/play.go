package cmd

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/coinflip/internal/access"
	"github.com/mselser95/coinflip/internal/app"
	"github.com/mselser95/coinflip/internal/settlement"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a local session against an in-process house",
	Long: `Runs the engine in-process with the memory ledger, funds a player and
places a series of wagers, printing every settlement to the terminal.

In deferred mode each wager is confirmed by the first configured resolver.
The command fails when LEDGER_MODE is not memory.`,
	RunE: runPlay,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("env-file", ".env", "Environment file to load before reading configuration")
	playCmd.Flags().String("player", "0x00000000000000000000000000000000000000a1", "Player address")
	playCmd.Flags().IntP("count", "n", 5, "Number of wagers to place")
	playCmd.Flags().Uint64P("stake", "s", 100, "Stake per wager")
	playCmd.Flags().StringP("choice", "c", "random", "heads, tails or random")
	playCmd.Flags().Uint64("funds", 10_000, "Tokens minted to the player and approved to the house")
	playCmd.Flags().Uint64("reserve", 0, "Extra tokens minted to the house before play")
}

func runPlay(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	playerHex, _ := cmd.Flags().GetString("player")
	count, _ := cmd.Flags().GetInt("count")
	stake, _ := cmd.Flags().GetUint64("stake")
	choiceStr, _ := cmd.Flags().GetString("choice")
	funds, _ := cmd.Flags().GetUint64("funds")
	extraReserve, _ := cmd.Flags().GetUint64("reserve")

	if !common.IsHexAddress(playerHex) {
		return fmt.Errorf("invalid player address %q", playerHex)
	}
	player := common.HexToAddress(playerHex)

	pick, err := choicePicker(choiceStr)
	if err != nil {
		return err
	}

	cfg, logger, err := loadRuntime(envFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.LedgerMode != "memory" {
		return errors.New("play requires LEDGER_MODE=memory")
	}
	cfg.NotifyConsole = true

	var resolver common.Address
	if types.Mode(cfg.SettlementMode) == types.ModeDeferred {
		resolvers, parseErr := access.ParseAddresses(cfg.ResolverAddresses)
		if parseErr != nil {
			return fmt.Errorf("parse resolvers: %w", parseErr)
		}
		if len(resolvers) == 0 {
			return errors.New("deferred play requires RESOLVER_ADDRESSES")
		}
		resolver = resolvers[0]
	}

	application, err := app.New(cfg, logger, &app.Options{
		ConsoleOut:  cmd.OutOrStdout(),
		DisableHTTP: true,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	application.Start()

	tok := application.DevToken()
	err = tok.Mint(player, funds)
	if err == nil && extraReserve > 0 {
		err = tok.Mint(application.House(), extraReserve)
	}
	if err != nil {
		_ = application.Shutdown()
		return fmt.Errorf("fund session: %w", err)
	}
	tok.Approve(player, application.House(), funds)

	engine := application.Engine()
	ctx := cmd.Context()
	var won, lost, rejected int

	for i := 0; i < count; i++ {
		w, placeErr := engine.PlaceWager(ctx, player, settlement.PlaceRequest{Stake: stake, Choice: pick()})
		if placeErr == nil && w.Status == types.StatusPending {
			w, placeErr = engine.Confirm(ctx, resolver, w.ID)
		}
		if placeErr != nil {
			rejected++
			fmt.Fprintf(cmd.ErrOrStderr(), "wager %d rejected: %s (%v)\n", i+1, types.CodeOf(placeErr), placeErr)
			continue
		}
		if w.Status == types.StatusWon {
			won++
		} else {
			lost++
		}
	}

	balance := tok.BalanceOf(player)
	reserve, reserveErr := engine.Reserve(ctx)

	err = application.Shutdown()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if reserveErr != nil {
		return fmt.Errorf("read reserve: %w", reserveErr)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nSession: %d won, %d lost, %d rejected\n", won, lost, rejected)
	fmt.Fprintf(out, "Player balance: %d (started with %d)\n", balance, funds)
	fmt.Fprintf(out, "House reserve:  %d\n", reserve.Balance)
	return nil
}

// choicePicker returns a function yielding the choice for each wager.
func choicePicker(s string) (func() types.Choice, error) {
	switch strings.ToLower(s) {
	case "heads", "h":
		return func() types.Choice { return types.Heads }, nil
	case "tails", "t":
		return func() types.Choice { return types.Tails }, nil
	case "random", "":
		//nolint:gosec // player picks need no cryptographic randomness
		return func() types.Choice { return types.Choice(rand.IntN(2)) }, nil
	default:
		return nil, fmt.Errorf("invalid choice %q: want heads, tails or random", s)
	}
}
