package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/vascular/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	yesFlag = &urfave.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}

	resetCmd = &urfave.Command{
		Name:            "reset",
		Usage:           "Delete the run history and start fresh",
		HideHelpCommand: true,
		Action:          cmdReset,
		Flags: []urfave.Flag{
			yesFlag,
		},
	}
)

func cmdReset(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	w := writer(cmd)

	if !cmd.Bool(yesFlag.Name) {
		fmt.Fprintf(w, "This will permanently delete all runs in %s\n", cfg.DBPath)
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		answer, err := readLine(reader(cmd))
		if err != nil {
			return err
		}
		if strings.ToLower(answer) != "y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	if data.IsPostgresDSN(cfg.DBPath) {
		n, err := data.DeleteAllRuns(cfg.DB)
		if err != nil {
			return err
		}
		slog.Info("runs deleted", "count", n)
		fmt.Fprintln(w, "Reset complete.")
		return nil
	}

	// close the DB before deleting the file
	if cfg.DB != nil {
		cfg.DB.Close()
		cfg.DB = nil
	}

	if err := os.Remove(cfg.DBPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting database: %w", err)
	}

	slog.Info("database deleted", "path", cfg.DBPath)

	if err := data.Init(cfg.DBPath); err != nil {
		return fmt.Errorf("re-initializing database: %w", err)
	}

	slog.Info("database re-initialized", "path", cfg.DBPath)
	fmt.Fprintln(w, "Reset complete.")
	return nil
}
