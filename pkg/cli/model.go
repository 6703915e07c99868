package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mchmarny/vascular/pkg/model"
	"github.com/mchmarny/vascular/pkg/net"
	urfave "github.com/urfave/cli/v3"
)

var (
	registryURLFlag = &urfave.StringFlag{
		Name:    "url",
		Usage:   "Registry base URL (default: config registry.url)",
		Sources: urfave.EnvVars(envPrefix + "REGISTRY_URL"),
	}

	artifactDirFlag = &urfave.StringFlag{
		Name:  "dir",
		Usage: "Directory to write the artifacts into (default: assets dir)",
	}

	modelCmd = &urfave.Command{
		Name:            "model",
		HideHelpCommand: true,
		Usage:           "Inspect or fetch the model artifacts",
		Commands: []*urfave.Command{
			{
				Name:   "info",
				Usage:  "Print the loaded model kind, classes and feature list",
				Action: cmdModelInfo,
			},
			{
				Name:   "fetch",
				Usage:  "Download model artifacts from the registry",
				Action: cmdModelFetch,
				Flags: []urfave.Flag{
					registryURLFlag,
					artifactDirFlag,
					tokenFlag,
				},
			},
		},
	}
)

func cmdModelInfo(_ context.Context, cmd *urfave.Command) error {
	a, err := getConfig(cmd).Artifacts()
	if err != nil {
		return err
	}
	return printResult(cmd, a.Info())
}

type fetchOutput struct {
	URL   string      `json:"url" yaml:"url"`
	Files []string    `json:"files" yaml:"files"`
	Model *model.Info `json:"model" yaml:"model"`
}

func cmdModelFetch(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	base := cmd.String(registryURLFlag.Name)
	if base == "" {
		base = cfg.Config.Registry.URL
	}
	if base == "" {
		return errors.New("registry url required: set --url or registry.url in config")
	}

	dir := cmd.String(artifactDirFlag.Name)
	if dir == "" {
		dir = cfg.AssetsDir
	}

	token, err := registryToken(cmd)
	if err != nil {
		return fmt.Errorf("reading registry token: %w", err)
	}

	client, err := net.NewClient(ctx, token)
	if err != nil {
		return err
	}

	files, err := net.FetchArtifacts(ctx, client, base, dir)
	if err != nil {
		return err
	}

	a, err := model.Load(dir)
	if err != nil {
		return fmt.Errorf("validating fetched artifacts: %w", err)
	}
	slog.Info("model artifacts fetched", "dir", dir, "files", len(files), "kind", a.Model.Kind())

	return printResult(cmd, &fetchOutput{URL: base, Files: files, Model: a.Info()})
}
