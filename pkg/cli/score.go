package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mchmarny/vascular/pkg/data"
	"github.com/mchmarny/vascular/pkg/report"
	"github.com/mchmarny/vascular/pkg/score"
	urfave "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

var (
	inputFlag = &urfave.StringSliceFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "CSV file to score (repeatable)",
		Required: true,
	}

	outputFlag = &urfave.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Directory to export scored files into (optional)",
	}

	exportFlag = &urfave.StringFlag{
		Name:  "export",
		Usage: "Export file format [csv, xlsx, json]",
		Value: string(report.FormatCSV),
	}

	strictFlag = &urfave.BoolFlag{
		Name:  "strict",
		Usage: "Fail when the input is missing any model feature instead of filling it with 0",
	}

	noSaveFlag = &urfave.BoolFlag{
		Name:  "no-save",
		Usage: "Do not store the runs in the run history",
	}

	scoreCmd = &urfave.Command{
		Name:            "score",
		HideHelpCommand: true,
		Usage:           "Score one or more CSV files with the pre-fitted model",
		Action:          cmdScore,
		Flags: []urfave.Flag{
			inputFlag,
			outputFlag,
			exportFlag,
			strictFlag,
			noSaveFlag,
		},
	}
)

// scoreOutput is the CLI summary of one scored file.
type scoreOutput struct {
	Run      string   `json:"run" yaml:"run"`
	File     string   `json:"file" yaml:"file"`
	Rows     int      `json:"rows" yaml:"rows"`
	Accuracy *float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	F1       *float64 `json:"f1,omitempty" yaml:"f1,omitempty"`
	AUC      *float64 `json:"auc,omitempty" yaml:"auc,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Output   string   `json:"output,omitempty" yaml:"output,omitempty"`
	Saved    bool     `json:"saved" yaml:"saved"`
}

func cmdScore(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	inputs := cmd.StringSlice(inputFlag.Name)
	if len(inputs) == 0 {
		return errors.New("at least one --input file required")
	}

	format, err := report.ParseFormat(cmd.String(exportFlag.Name))
	if err != nil {
		return err
	}

	s, err := newScorer(cfg, cmd.Bool(strictFlag.Name))
	if err != nil {
		return err
	}

	runs, err := scoreFiles(ctx, s, inputs)
	if err != nil {
		return err
	}

	names := exportNames(runs, format)
	out := make([]*scoreOutput, len(runs))
	for i, run := range runs {
		o := newScoreOutput(run, cfg.Config.Precision)

		if dir := cmd.String(outputFlag.Name); dir != "" {
			path := filepath.Join(dir, names[i])
			if o.Output, err = exportRun(path, run, format, cfg.Config.ReportOptions()); err != nil {
				return err
			}
		}

		if !cmd.Bool(noSaveFlag.Name) {
			if err := data.SaveRun(cfg.DB, run); err != nil {
				return fmt.Errorf("saving run for %s: %w", run.FileName, err)
			}
			o.Saved = true
		}
		out[i] = o
	}

	return printResult(cmd, out)
}

// scoreFiles scores every input concurrently and returns the runs in input order.
func scoreFiles(ctx context.Context, s *scorer, inputs []string) ([]*data.Run, error) {
	runs := make([]*data.Run, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			run, err := scoreFile(s, path)
			if err != nil {
				return err
			}
			runs[i] = run
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}

func scoreFile(s *scorer, path string) (*data.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	slog.Debug("scoring file", "path", path)
	return s.Score(filepath.Base(path), f)
}

// exportNames returns one export file name per run. Inputs sharing a base name
// get a numeric suffix so no export overwrites another.
func exportNames(runs []*data.Run, f report.Format) []string {
	names := make([]string, len(runs))
	used := make(map[string]bool, len(runs))
	for i, run := range runs {
		name := exportFileName(run.FileName, f)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d-predictions.%s", exportBase(run.FileName), n, f)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func exportRun(path string, run *data.Run, f report.Format, opt report.Options) (string, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	if err := report.Write(file, f, run.Result, opt); err != nil {
		file.Close()
		return "", fmt.Errorf("exporting %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	slog.Debug("run exported", "path", path, "format", f)
	return path, nil
}

func newScoreOutput(run *data.Run, precision int) *scoreOutput {
	o := &scoreOutput{
		Run:      run.ID,
		File:     run.FileName,
		Rows:     run.Rows,
		Warnings: run.Result.Warnings,
	}
	round := func(v float64) *float64 {
		r := score.Round(v, precision)
		return &r
	}
	if sum := run.Result.Summary; sum != nil {
		o.Accuracy = round(sum.Accuracy)
		o.F1 = round(sum.F1)
		if sum.AUC != nil {
			o.AUC = round(*sum.AUC)
		}
	}
	return o
}
