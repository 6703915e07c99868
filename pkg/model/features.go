package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadFeatureList loads the ordered feature names, one per line.
// Blank lines are ignored. A missing file yields an error wrapping os.ErrNotExist.
func ReadFeatureList(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("feature list path not set: %w", os.ErrNotExist)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature list %s: %w", path, err)
	}
	defer f.Close()

	list, err := parseFeatureList(f)
	if err != nil {
		return nil, fmt.Errorf("reading feature list %s: %w", path, err)
	}
	return list, nil
}

func parseFeatureList(r io.Reader) ([]string, error) {
	list := make([]string, 0)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(name) == "" {
			continue
		}
		list = append(list, name)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
