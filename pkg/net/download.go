package net

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Download saves the content at url to path and returns its hex encoded sha256.
// The file is written next to path and renamed into place once complete.
func Download(ctx context.Context, c *http.Client, url, path string) (sum string, retErr error) {
	resp, err := getResp(ctx, c, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("error creating temp file for %s: %w", path, err)
	}
	defer func() {
		if retErr != nil {
			out.Close()
			os.Remove(out.Name())
		}
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), resp.Body); err != nil {
		return "", fmt.Errorf("error saving downloaded content to file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(out.Name(), path); err != nil {
		return "", fmt.Errorf("moving download into place %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
