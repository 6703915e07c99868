// Package cli implements the vascular command line interface and local web server.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mchmarny/vascular/pkg/config"
	"github.com/mchmarny/vascular/pkg/data"
	"github.com/mchmarny/vascular/pkg/logging"
	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/score"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "vascular"
	appConfigKey = "app-config"
	homeDirName  = ".vascular"

	formatJSON = "json"
	formatYAML = "yaml"

	envPrefix = "VASCULAR_"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:    "debug",
		Usage:   "Prints verbose logs (optional, default: false)",
		Sources: urfave.EnvVars(envPrefix + "DEBUG"),
	}

	dbFlag = &urfave.StringFlag{
		Name:    "db",
		Usage:   "Run history database: sqlite file path or postgres:// DSN (default: ~/.vascular/data.db)",
		Sources: urfave.EnvVars(envPrefix + "DB"),
	}

	assetsFlag = &urfave.StringFlag{
		Name:    "assets",
		Usage:   "Directory with model.json, scaler.json and feature_list.txt (default: config assets)",
		Sources: urfave.EnvVars(envPrefix + "ASSETS"),
	}

	configFlag = &urfave.StringFlag{
		Name:    "config",
		Usage:   "Config directory (default: ~/.vascular)",
		Sources: urfave.EnvVars(envPrefix + "CONFIG"),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	if err := config.LoadEnv(config.EnvFile); err != nil {
		slog.Warn("env file not loaded", "error", err)
	}

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// appConfig is the state shared by all commands of one invocation.
type appConfig struct {
	ConfigDir string
	DBPath    string
	AssetsDir string
	Debug     bool
	Format    string
	Config    *config.Config
	DB        *sql.DB

	loadOnce  sync.Once
	artifacts *model.Artifacts
	loadErr   error
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

// Artifacts loads the model artifacts on first use.
func (c *appConfig) Artifacts() (*model.Artifacts, error) {
	c.loadOnce.Do(func() {
		c.artifacts, c.loadErr = model.Load(c.AssetsDir)
		if c.loadErr != nil {
			c.loadErr = fmt.Errorf("loading model artifacts from %s: %w", c.AssetsDir, c.loadErr)
		}
	})
	return c.artifacts, c.loadErr
}

// Predictor returns a predictor over the loaded artifacts.
func (c *appConfig) Predictor(strict bool) (*score.Predictor, error) {
	a, err := c.Artifacts()
	if err != nil {
		return nil, err
	}
	return score.NewPredictor(a, score.Options{
		Strict:      strict || c.Config.StrictFeatures,
		LabelColumn: c.Config.LabelColumn,
	})
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Score vascular metadata with a pre-fitted classifier",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			debugFlag,
			dbFlag,
			assetsFlag,
			configFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			serverCmd,
			runsCmd,
			modelCmd,
			authCmd,
			resetCmd,
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			cfg, err := setup(cmd)
			if err != nil {
				return ctx, err
			}
			cmd.Metadata[appConfigKey] = cfg
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func setup(cmd *urfave.Command) (*appConfig, error) {
	debug := cmd.Bool(debugFlag.Name)
	if debug {
		initLogging(true)
	}

	format := cmd.String(formatFlag.Name)
	switch format {
	case formatYAML, "yml":
		format = formatYAML
	case formatJSON, "":
		format = formatJSON
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	configDir := cmd.String(configFlag.Name)
	if configDir == "" {
		configDir = getHomeDir()
	}

	c, err := config.ReadOrCreate(configDir)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	assets := cmd.String(assetsFlag.Name)
	if assets == "" {
		assets = c.Assets
	}

	dbPath := cmd.String(dbFlag.Name)
	if dbPath == "" {
		dbPath = c.DB
	}
	if dbPath == "" {
		dbPath = filepath.Join(configDir, data.DataFileName)
	}

	if err := data.Init(dbPath); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &appConfig{
		ConfigDir: configDir,
		DBPath:    dbPath,
		AssetsDir: assets,
		Debug:     debug,
		Format:    format,
		Config:    c,
		DB:        db,
	}, nil
}

func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func getHomeDir() string {
	dir, _, err := config.GetOrCreateHomeDir(homeDirName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	return dir
}

func writer(cmd *urfave.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// printResult encodes v to the command output in the configured format.
func printResult(cmd *urfave.Command, v any) error {
	cfg := getConfig(cmd)
	if err := encode(writer(cmd), cfg.Format, v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

var errBadInput = errors.New("invalid input")
