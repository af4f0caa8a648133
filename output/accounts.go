package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AccountsFileName is the eligible accounts file for a chain.
func AccountsFileName(chain string) string {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(chain)
	return "upgradable-accs-" + name + ".json"
}

// WriteAccounts writes addrs as a JSON array to dir and returns the file path.
func WriteAccounts(dir, chain string, addrs []string) (string, error) {
	if addrs == nil {
		addrs = []string{}
	}

	b, err := json.Marshal(addrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode accounts: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, AccountsFileName(chain))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("failed to write accounts: %w", err)
	}
	return path, nil
}

func ReadAccounts(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	var addrs []string
	if err := json.Unmarshal(b, &addrs); err != nil {
		return nil, fmt.Errorf("failed to decode accounts in %s: %w", path, err)
	}
	return addrs, nil
}
