package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tokens maps a seller account name to its marketplace API token.
type Tokens map[string]string

// LoadTokens reads the token file. JSON is a subset of YAML, so both the
// historical tokens.json and a YAML mapping are accepted.
func LoadTokens(path string) (Tokens, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokens %s: %w", path, err)
	}
	var t Tokens
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode tokens %s: %w", path, err)
	}
	for acct, tok := range t {
		if strings.TrimSpace(tok) == "" {
			return nil, fmt.Errorf("tokens %s: account %q has an empty token", path, acct)
		}
	}
	return t, nil
}

// Accounts lists account names in sorted order.
func (t Tokens) Accounts() []string {
	out := make([]string, 0, len(t))
	for a := range t {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
