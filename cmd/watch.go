package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mselser95/coinflip/internal/notify"
	"github.com/mselser95/coinflip/pkg/config"
	"github.com/mselser95/coinflip/pkg/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream settlement events from a running service",
	Long: `Connects to the /ws endpoint of a running service and prints every
settlement, parameter change and withdrawal until interrupted. The
connection is re-established with backoff when it drops.`,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("url", "u", "ws://localhost:8080/ws", "Stream endpoint")
	watchCmd.Flags().StringP("player", "p", "", "Only show settlements for this player")
	watchCmd.Flags().String("log-level", "warn", "Log level for connection diagnostics")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	player, _ := cmd.Flags().GetString("player")
	level, _ := cmd.Flags().GetString("log-level")

	logger, err := config.NewLogger(level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	client, err := websocket.New(websocket.Config{
		URL:    url,
		Player: player,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	err = client.Start()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := notify.NewConsoleSink(cmd.OutOrStdout())
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-client.Events():
			if !ok {
				return nil
			}
			err = console.Publish(ctx, env)
			if err != nil {
				logger.Warn("render-event-failed", zap.String("type", env.Type), zap.Error(err))
			}
		}
	}
}
