package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"wisefido-health/internal/common/logger"
	"wisefido-health/internal/config"
	"wisefido-health/internal/service"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func main() {
	rootCmd := &cobra.Command{
		Use:   "wisefido-health-ctl",
		Short: "Batch operations for the health monitoring engine",
	}
	rootCmd.AddCommand(resolveAlertCmd())
	rootCmd.AddCommand(setThresholdCmd())
	rootCmd.AddCommand(expandDosesCmd())
	rootCmd.AddCommand(markDoseCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(adherenceCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(exportReportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withMonitor 加载配置并创建引擎（不启动读数消费者）
func withMonitor(cmd *cobra.Command, fn func(ctx context.Context, monitor *service.MonitorService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Ingest.MQTTEnabled = false
	cfg.Ingest.StreamEnabled = false

	log, err := logger.NewLogger(cfg.Log.Level, "console", "wisefido-health-ctl")
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	svc, err := service.NewHealthService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	return fn(ctx, svc.Monitor())
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDate 解析 YYYY-MM-DD（本地时区），空字符串返回 def
func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s", s, dateLayout)
	}
	return t, nil
}
