package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ambuplan/api"
	"ambuplan/app"
	"ambuplan/config"
)

var requestPath string

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run one scheduling request from a JSON file and print the result",
	RunE:  solve,
}

func init() {
	solveCmd.Flags().StringVarP(&requestPath, "request", "r", "", "request file (JSON, same schema as POST /api/schedule)")
	_ = solveCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	raw, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req api.ScheduleRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	fleet, bookings, alg, runCfg, err := req.Decode(svc.BaseRunConfig())
	if err != nil {
		return err
	}
	result, err := svc.RunSchedule(ctx, fleet, bookings, alg, runCfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.EncodeSchedule(result))
}

// loadOrDefault falls back to built-in defaults when the default config file
// is absent, so one-shot solves work without any setup.
func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.Load(path)
}
