package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/vascular/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	limitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of runs to list",
		Value: data.DefaultRunLimit,
	}

	runIDFlag = &urfave.StringFlag{
		Name:     "id",
		Usage:    "Run ID",
		Required: true,
	}

	runsCmd = &urfave.Command{
		Name:            "runs",
		HideHelpCommand: true,
		Usage:           "Inspect the stored scoring runs",
		Commands: []*urfave.Command{
			{
				Name:   "list",
				Usage:  "List the most recent runs",
				Action: cmdListRuns,
				Flags:  []urfave.Flag{limitFlag},
			},
			{
				Name:   "show",
				Usage:  "Print a stored run with its predictions and metrics",
				Action: cmdShowRun,
				Flags:  []urfave.Flag{runIDFlag},
			},
			{
				Name:   "delete",
				Usage:  "Delete a stored run",
				Action: cmdDeleteRun,
				Flags:  []urfave.Flag{runIDFlag},
			},
			{
				Name:   "state",
				Usage:  "Print run history totals",
				Action: cmdRunsState,
			},
		},
	}
)

func cmdListRuns(_ context.Context, cmd *urfave.Command) error {
	list, err := data.ListRuns(getConfig(cmd).DB, cmd.Int(limitFlag.Name))
	if err != nil {
		return err
	}
	return printResult(cmd, list)
}

func cmdShowRun(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	run, err := data.GetRun(cfg.DB, cmd.String(runIDFlag.Name))
	if err != nil {
		return err
	}
	if run.Result != nil && run.Result.Batch != nil {
		run.Result.Batch = run.Result.Batch.Rounded(cfg.Config.Precision)
	}
	return printResult(cmd, run)
}

func cmdDeleteRun(_ context.Context, cmd *urfave.Command) error {
	id := cmd.String(runIDFlag.Name)
	if err := data.DeleteRun(getConfig(cmd).DB, id); err != nil {
		return err
	}
	fmt.Fprintf(writer(cmd), "Run %s deleted.\n", id)
	return nil
}

func cmdRunsState(_ context.Context, cmd *urfave.Command) error {
	state, err := data.GetDataState(getConfig(cmd).DB)
	if err != nil {
		return err
	}
	return printResult(cmd, state)
}
