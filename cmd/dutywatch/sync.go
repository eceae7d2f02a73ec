package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hferris/dutywatch/internal/config"
	"github.com/hferris/dutywatch/internal/db"
	"github.com/hferris/dutywatch/internal/qgenda"
	"github.com/hferris/dutywatch/internal/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSyncCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		apply      string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull the external schedule and reconcile it",
		Long: "Fetches the external schedule into the local store as imported shifts, " +
			"opening conflicts for violations. With --apply, pending pairs are then " +
			"resolved uniformly (keep-imported-all or keep-local-all).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configPath, from, to, apply)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dutywatch.yaml", "path to config file")
	cmd.Flags().StringVar(&from, "from", "", "window start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "window end (YYYY-MM-DD, default +30 days)")
	cmd.Flags().StringVar(&apply, "apply", "", "batch decision for pending pairs: keep-imported-all or keep-local-all")
	return cmd
}

func runSync(cmd *cobra.Command, configPath, from, to, apply string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.QGenda.BaseURL == "" {
		return fmt.Errorf("sync: qgenda.base_url is not configured")
	}
	if cfg.QGenda.ClientSecret == "" {
		secret, err := promptSecret(cmd, "Client secret: ")
		if err != nil {
			return err
		}
		cfg.QGenda.ClientSecret = secret
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 30)
	if from != "" {
		if start, err = time.Parse("2006-01-02", from); err != nil {
			return fmt.Errorf("sync: invalid --from date %q", from)
		}
	}
	if to != "" {
		if end, err = time.Parse("2006-01-02", to); err != nil {
			return fmt.Errorf("sync: invalid --to date %q", to)
		}
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}

	client, err := qgenda.New(qgenda.Opts{
		BaseURL:      cfg.QGenda.BaseURL,
		TokenURL:     cfg.QGenda.TokenURL,
		ClientID:     cfg.QGenda.ClientID,
		ClientSecret: cfg.QGenda.ClientSecret,
	})
	if err != nil {
		return err
	}

	syncer := &qgenda.Syncer{DB: gormDB, Client: client}
	report, err := syncer.Run(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Imported %d shift(s), updated %d, opened %d conflict(s)\n",
		report.Imported, report.Updated, report.Conflicts)
	for _, id := range report.Skipped {
		fmt.Fprintf(out, "  skipped entry %s\n", id)
	}

	coordinator := &reconcile.Coordinator{DB: gormDB}
	pairs, err := coordinator.PendingPairs()
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		fmt.Fprintln(out, "No conflicting pairs to reconcile")
		return nil
	}

	if apply == "" {
		fmt.Fprintf(out, "%d conflicting pair(s) pending:\n", len(pairs))
		for _, p := range pairs {
			fmt.Fprintf(out, "  imported %s <-> local %s\n", p.ImportedShiftID, p.LocalShiftID)
		}
		fmt.Fprintln(out, "Re-run with --apply keep-imported-all or --apply keep-local-all, or decide per pair via the API")
		return nil
	}

	result, err := coordinator.ApplyBatch(reconcile.BatchChoice(apply))
	if err != nil {
		return err
	}
	if len(result.Failures) > 0 {
		fmt.Fprintf(out, "Batch rolled back; %d pair(s) failed:\n", len(result.Failures))
		for _, f := range result.Failures {
			fmt.Fprintf(out, "  %s/%s: %s\n", f.ImportedShiftID, f.LocalShiftID, f.Reason)
		}
		return fmt.Errorf("sync: batch reconciliation failed")
	}
	fmt.Fprintf(out, "Applied %d pair resolution(s)\n", result.Applied)
	return nil
}

// promptSecret reads a secret without echoing when attached to a terminal.
func promptSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("sync: qgenda.client_secret is not configured and stdin is not a terminal")
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("sync: read secret: %w", err)
	}
	return string(secret), nil
}
