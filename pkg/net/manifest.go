package net

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/vascular/pkg/model"
	"golang.org/x/sync/errgroup"
)

const (
	ManifestFileName = "manifest.json"

	maxParallelDownloads = 3
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

// Manifest lists the artifact files published in a registry directory.
type Manifest struct {
	Version string         `json:"version,omitempty"`
	Files   []ManifestFile `json:"files"`
}

// ManifestFile is one published artifact.
type ManifestFile struct {
	Name     string `json:"name"`
	SHA256   string `json:"sha256,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// DefaultManifest is used when the registry does not publish a manifest.
func DefaultManifest() *Manifest {
	return &Manifest{
		Files: []ManifestFile{
			{Name: model.DefaultModelFile},
			{Name: model.DefaultScalerFile},
			{Name: model.DefaultFeatureListFile, Optional: true},
		},
	}
}

func joinURL(base, name string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid registry url %s: %w", base, err)
	}
	return u.JoinPath(name).String(), nil
}

// FetchManifest reads the manifest at base, falling back to DefaultManifest when the
// registry has none.
func FetchManifest(ctx context.Context, c *http.Client, base string) (*Manifest, error) {
	u, err := joinURL(base, ManifestFileName)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := GetJSON(ctx, c, u, &m); err != nil {
		if errors.Is(err, ErrorURLNotFound) {
			slog.Debug("no manifest, using default artifact list", "url", u)
			return DefaultManifest(), nil
		}
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s lists no files", u)
	}
	for _, f := range m.Files {
		if f.Name == "" || f.Name != filepath.Base(f.Name) {
			return nil, fmt.Errorf("invalid file name in manifest: %q", f.Name)
		}
	}
	return &m, nil
}

// FetchArtifacts downloads every manifest file from base into dir and returns the
// written paths. Optional files missing from the registry are skipped.
func FetchArtifacts(ctx context.Context, c *http.Client, base, dir string) ([]string, error) {
	if base == "" {
		return nil, errors.New("registry url required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir %s: %w", dir, err)
	}

	m, err := FetchManifest(ctx, c, base)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(m.Files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDownloads)
	for i, f := range m.Files {
		g.Go(func() error {
			u, err := joinURL(base, f.Name)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, f.Name)
			sum, err := Download(ctx, c, u, path)
			if err != nil {
				if f.Optional && errors.Is(err, ErrorURLNotFound) {
					slog.Debug("optional artifact not published", "file", f.Name)
					return nil
				}
				return fmt.Errorf("downloading %s: %w", f.Name, err)
			}
			if f.SHA256 != "" && !strings.EqualFold(f.SHA256, sum) {
				os.Remove(path)
				return fmt.Errorf("%w: %s expected %s, got %s", ErrChecksumMismatch, f.Name, f.SHA256, sum)
			}
			slog.Debug("artifact downloaded", "file", f.Name, "sha256", sum)
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
