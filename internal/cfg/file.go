package cfg

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FillFromFile reads a YAML mapping keyed by flag name and applies each
// value to flags that the CLI and environment left unset. Unknown keys
// and values a flag rejects are errors; a typo in a config file should
// stop the process rather than silently fall back to a default.
func FillFromFile(fs *flag.FlagSet, path string, logf func(string, ...any)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, name := range keys {
		node := doc[name]
		if fs.Lookup(name) == nil {
			errs = append(errs, fmt.Errorf("%s: unknown key %q", path, name))
			continue
		}
		if name == "config" {
			errs = append(errs, fmt.Errorf("%s: config files cannot name another config file", path))
			continue
		}
		val, err := scalar(&node)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", path, name, err))
			continue
		}
		if set[name] {
			if logf != nil {
				logf("flag -%s: cli/env value overrides config file", name)
			}
			continue
		}
		if err := fs.Set(name, val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %s=%q: %w", path, name, val, err))
		}
	}
	return errors.Join(errs...)
}

// scalar flattens a YAML value into flag syntax. Sequences of scalars
// become comma separated lists.
func scalar(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return "", errors.New("nested values are not supported")
			}
			parts = append(parts, c.Value)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", errors.New("value must be a scalar or a list of scalars")
	}
}
