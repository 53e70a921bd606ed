package cli

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dledger/dlnode/internal/config"
	"github.com/dledger/dlnode/internal/node"
	"github.com/spf13/cobra"
)

var identitySeedFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the peer node",
	Long: `Load configuration, seed genesis if absent, and run the peer's
generation and sync loops until interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&identitySeedFile, "identity-seed-file", "", "path to this peer's raw key-derivation seed (defaults to a seed derived from routable_prefix, for development only)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	seed, err := loadIdentitySeed(cfg)
	if err != nil {
		return err
	}

	n, err := node.New(cfg, seed, log)
	if err != nil {
		return fmt.Errorf("building node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("starting node", "routable_prefix", cfg.RoutablePrefix, "mc_prefix", cfg.McPrefix)
	if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("node run loop: %w", err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.LoadDefaults()
	}
	return config.Load(configFile)
}

// loadIdentitySeed reads the peer's signing-key seed from
// --identity-seed-file, or falls back to a development-only seed
// derived from the configured routable prefix. Spec §9 treats key
// provisioning as an assumed-correct primitive with no protocol of its
// own, so dlnode's own key-management story is intentionally minimal.
func loadIdentitySeed(cfg *config.Config) ([]byte, error) {
	if identitySeedFile == "" {
		sum := sha256.Sum256([]byte(cfg.RoutablePrefix))
		return sum[:], nil
	}
	seed, err := os.ReadFile(identitySeedFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity seed file: %w", err)
	}
	return seed, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
