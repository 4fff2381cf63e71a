package cmd

import (
	"fmt"

	"github.com/mselser95/coinflip/internal/params"
	"github.com/mselser95/coinflip/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the effective game parameters",
	Long: `Resolves the coefficient and stake bounds the service would start with:
environment values first, then PARAMS_FILE when set.`,
	RunE: runParams,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.Flags().String("env-file", ".env", "Environment file to load before reading configuration")
}

func runParams(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, logger, err := loadRuntime(envFile)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	snap := params.Snapshot{
		Coefficient: cfg.Coefficient,
		MinStake:    cfg.MinStake,
		MaxStake:    cfg.MaxStake,
	}
	source := "environment"
	if cfg.ParamsFile != "" {
		snap, err = params.LoadFile(cfg.ParamsFile, snap)
		if err != nil {
			return err
		}
		source = cfg.ParamsFile
	}

	store, err := params.New(snap, logger)
	if err != nil {
		return err
	}
	snap = store.Snapshot()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source:      %s\n", source)
	fmt.Fprintf(out, "Mode:        %s\n", cfg.SettlementMode)
	fmt.Fprintf(out, "Coefficient: %d (%s×)\n", snap.Coefficient, types.Multiplier(snap.Coefficient))
	fmt.Fprintf(out, "Min stake:   %d\n", snap.MinStake)
	fmt.Fprintf(out, "Max stake:   %d\n", snap.MaxStake)
	return nil
}
