package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/harness"
)

// LoadDir reads every *.json file in dir, sorted by name. Files that cannot
// be read are reported and skipped; parsing is left to the normalizer.
func LoadDir(dir string) ([]harness.RawRecord, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read dir %s: %w", dir, err)}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	records := make([]harness.RawRecord, 0, len(names))
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		records = append(records, harness.RawRecord{Locator: path, Data: data})
	}
	return records, errs
}

// WritePayload writes p under dir using its conventional locator and
// returns the file path.
func WritePayload(dir string, p domain.RunPayload) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run payload: %w", err)
	}

	path := filepath.Join(dir, p.Locator())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
