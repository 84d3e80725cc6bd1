// Package envfile parses dotenv-shaped files into the name/value pairs the
// Portainer stack API expects.
package envfile

import (
	"os"
	"strings"
)

// Var is a single environment variable in API payload form.
type Var struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parse converts dotenv content into an ordered list of variables. Blank
// lines, #-comments, and lines without an = separator are skipped. Keys and
// values are whitespace-trimmed; only the first = splits.
func Parse(content string) []Var {
	vars := make([]Var, 0)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		vars = append(vars, Var{
			Name:  strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}

	return vars
}

// ParseFile reads and parses a dotenv file. An empty path yields an empty
// list: deployments without runtime secrets are legal.
func ParseFile(path string) ([]Var, error) {
	if path == "" {
		return []Var{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(string(content)), nil
}
