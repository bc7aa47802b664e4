package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/xrefgraph/internal/logging"
)

// loadDotEnv loads .env from the working directory into the environment.
// Variables already set win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logging.Debug("no .env file found, using system environment variables")
	}
}

// defaultConfigPaths lists the YAML files consulted when present; earlier
// files take precedence.
func defaultConfigPaths() []string {
	paths := []string{"xrefgraph.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "xrefgraph.yaml"))
	}
	return paths
}

// yamlLoader resolves flag values from a YAML document. Keys are flag names
// with dashes or underscores. A mapping named after a command scopes keys to
// that command:
//
//	log-level: debug
//	serve:
//	  port: 9090
//	  allowed-origins: [https://viewer.example]
func yamlLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return kong.ResolverFunc(func(_ *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		scopes := []map[string]any{}
		if parent != nil && parent.Command != nil {
			if section, ok := lookup(values, parent.Command.Name).(map[string]any); ok {
				scopes = append(scopes, section)
			}
		}
		scopes = append(scopes, values)

		for _, scope := range scopes {
			v := lookup(scope, flag.Name)
			if v == nil {
				continue
			}
			if _, nested := v.(map[string]any); nested {
				continue
			}
			return flagValue(v), nil
		}
		return nil, nil
	}), nil
}

func lookup(m map[string]any, name string) any {
	if v, ok := m[name]; ok {
		return v
	}
	return m[strings.ReplaceAll(name, "-", "_")]
}

// flagValue renders YAML scalars and sequences the way they would be typed on
// the command line.
func flagValue(v any) string {
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
