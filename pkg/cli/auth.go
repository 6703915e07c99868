package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mchmarny/vascular/pkg/auth"
	urfave "github.com/urfave/cli/v3"
)

var (
	tokenFlag = &urfave.StringFlag{
		Name:    "token",
		Usage:   "Registry access token (default: read from stdin)",
		Sources: urfave.EnvVars(envPrefix + "REGISTRY_TOKEN"),
	}

	clearFlag = &urfave.BoolFlag{
		Name:  "clear",
		Usage: "Delete the saved registry token",
	}

	authCmd = &urfave.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Save the access token used to fetch model artifacts from the registry",
		Action:          cmdAuth,
		Flags: []urfave.Flag{
			tokenFlag,
			clearFlag,
		},
	}
)

func tokenStore(cmd *urfave.Command) *auth.Store {
	return auth.NewStore(getConfig(cmd).ConfigDir)
}

func reader(cmd *urfave.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func cmdAuth(_ context.Context, cmd *urfave.Command) error {
	store := tokenStore(cmd)
	w := writer(cmd)

	if cmd.Bool(clearFlag.Name) {
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Token deleted.")
		return nil
	}

	token := cmd.String(tokenFlag.Name)
	if token == "" {
		fmt.Fprint(w, "Registry token: ")
		var err error
		if token, err = readLine(reader(cmd)); err != nil {
			return err
		}
	}

	if err := store.Save(token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintln(w, "Token saved.")
	return nil
}

// registryToken returns the flag or env token, then the saved one. A missing token is not an error.
func registryToken(cmd *urfave.Command) (string, error) {
	if t := cmd.String(tokenFlag.Name); t != "" {
		return t, nil
	}
	t, err := tokenStore(cmd).Get()
	if errors.Is(err, auth.ErrNoToken) {
		return "", nil
	}
	return t, err
}
