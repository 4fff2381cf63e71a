package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/coinflip/internal/oracle"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute a wager outcome from a revealed server seed",
	Long: `Recomputes the outcome of a settled wager from the revealed server seed
and the wager's identity, player and sequence.

When --commitment is given the seed is first checked against the commitment
published at /api/oracle/commitment.`,
	RunE: runVerify,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("seed", "", "Revealed server seed (0x-prefixed hex or raw string)")
	verifyCmd.Flags().String("commitment", "", "Published seed commitment")
	verifyCmd.Flags().String("id", "", "Wager ID")
	verifyCmd.Flags().String("player", "", "Player address")
	verifyCmd.Flags().Uint64("sequence", 0, "Wager sequence number")
	_ = verifyCmd.MarkFlagRequired("seed")
	_ = verifyCmd.MarkFlagRequired("id")
	_ = verifyCmd.MarkFlagRequired("player")
}

type verifyInput struct {
	Seed       string
	Commitment string
	ID         string
	Player     string
	Sequence   uint64
}

func runVerify(cmd *cobra.Command, args []string) error {
	in := verifyInput{}
	in.Seed, _ = cmd.Flags().GetString("seed")
	in.Commitment, _ = cmd.Flags().GetString("commitment")
	in.ID, _ = cmd.Flags().GetString("id")
	in.Player, _ = cmd.Flags().GetString("player")
	in.Sequence, _ = cmd.Flags().GetUint64("sequence")

	return verifyOutcome(cmd.OutOrStdout(), in)
}

func verifyOutcome(out io.Writer, in verifyInput) error {
	if !common.IsHexAddress(in.Player) {
		return fmt.Errorf("invalid player address %q", in.Player)
	}
	if in.ID == "" {
		return errors.New("wager id cannot be empty")
	}

	seed, err := oracle.ParseSeed(in.Seed)
	if err != nil {
		return err
	}
	entropy := oracle.Entropy(in.ID, common.HexToAddress(in.Player), in.Sequence)

	if in.Commitment != "" {
		commitment := common.HexToHash(in.Commitment)
		outcome, verifyErr := oracle.Verify(seed, commitment, entropy)
		if verifyErr != nil {
			return fmt.Errorf("verify: %w", verifyErr)
		}
		fmt.Fprintf(out, "Commitment: %s (matches)\n", commitment.Hex())
		fmt.Fprintf(out, "Outcome:    %s\n", outcome)
		return nil
	}

	fmt.Fprintf(out, "Commitment: %s\n", crypto.Keccak256Hash(seed).Hex())
	fmt.Fprintf(out, "Outcome:    %s\n", oracle.Outcome(seed, entropy))
	return nil
}
