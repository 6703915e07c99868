package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrorURLNotFound = errors.New("URL not found")

func getResp(ctx context.Context, c *http.Client, url string) (*http.Response, error) {
	if c == nil {
		var err error
		if c, err = GetHTTPClient(); err != nil {
			return nil, fmt.Errorf("error creating HTTP client: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	req.Header.Set("User-Agent", clientAgent)

	resp, err := c.Do(req) //nolint:gosec // URL comes from config or flags
	if err != nil {
		return nil, fmt.Errorf("error executing HTTP Get request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrorURLNotFound, url)
	case resp.StatusCode != http.StatusOK:
		LogResponse(resp)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status (%d - %s): %s", resp.StatusCode, resp.Status, url)
	}
	return resp, nil
}

// GetJSON retrieves the HTTP content and decodes it into the passed target.
func GetJSON[T any](ctx context.Context, c *http.Client, url string, target *T) error {
	resp, err := getResp(ctx, c, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}
