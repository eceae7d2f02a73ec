package main

import (
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/config"
	"github.com/hferris/dutywatch/internal/db"
	"github.com/hferris/dutywatch/internal/detect"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	var (
		configPath string
		providerID string
		from       string
		to         string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Check a candidate shift against a provider's schedule",
		Long:  "Runs conflict detection for a hypothetical shift without writing anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, configPath, providerID, from, to)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dutywatch.yaml", "path to config file")
	cmd.Flags().StringVar(&providerID, "provider", "", "provider id (required)")
	cmd.Flags().StringVar(&from, "from", "", "shift start date YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "shift end date YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("provider")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func runDetect(cmd *cobra.Command, configPath, providerID, from, to string) error {
	out := cmd.OutOrStdout()

	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return fmt.Errorf("detect: invalid --from date %q", from)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return fmt.Errorf("detect: invalid --to date %q", to)
	}
	if end.Before(start) {
		return fmt.Errorf("detect: shift ends before it starts")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	provider, err := store.GetProvider(gormDB, providerID)
	if err != nil {
		return err
	}
	others, err := store.FindConfirmedShifts(gormDB, providerID, "")
	if err != nil {
		return err
	}

	candidate := models.Shift{
		ProviderID: providerID,
		StartDate:  start,
		EndDate:    end,
		Status:     models.ShiftConfirmed,
	}
	detections, err := detect.Detect(candidate, others, *provider)
	if err != nil {
		return err
	}

	if len(detections) == 0 {
		fmt.Fprintf(out, "No conflicts for %s over %s..%s\n", provider.Name, from, to)
		return nil
	}
	for _, d := range detections {
		marker := "advisory"
		if d.Blocking {
			marker = "BLOCKING"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", marker, d.Type, d.Description)
	}
	if detect.HasBlocking(detections) {
		return fmt.Errorf("detect: candidate shift conflicts with the existing schedule")
	}
	return nil
}
