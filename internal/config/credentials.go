package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/billygk/perpx/internal/models"
)

// LoadCredentials reads keys_dict (spec §6: mapping account_name →
// {api_key, api_secret}) from a JSON file and returns it as an
// order-stable slice of Credentials, sorted by account name so that
// placement fan-out order is deterministic across runs on the same input.
func LoadCredentials(path string) ([]models.Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %q: %w", path, err)
	}

	var keysDict map[string]struct {
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
	}
	if err := json.Unmarshal(raw, &keysDict); err != nil {
		return nil, fmt.Errorf("parsing credentials file %q: %w", path, err)
	}
	if len(keysDict) == 0 {
		return nil, fmt.Errorf("credentials file %q defines no accounts", path)
	}

	names := make([]string, 0, len(keysDict))
	for name := range keysDict {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.Credentials, 0, len(names))
	for _, name := range names {
		entry := keysDict[name]
		if entry.APIKey == "" || entry.APISecret == "" {
			return nil, fmt.Errorf("account %q is missing api_key or api_secret", name)
		}
		out = append(out, models.Credentials{
			Name:      name,
			APIKey:    entry.APIKey,
			APISecret: entry.APISecret,
		})
	}
	return out, nil
}
