package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

// loadDataFile reads a YAML (or JSON) document whose top level is a mapping.
func loadDataFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return parseData(raw)
}

func parseData(raw []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	if doc.Kind == 0 {
		return map[string]any{}, nil
	}
	v, err := nodeValue(&doc)
	if err != nil {
		return nil, fmt.Errorf("parse data: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parse data: top level is %T, want a mapping", v)
	}
	return m, nil
}

// nodeValue converts a YAML node to plain Go values. Unlike decoding into
// any, timestamps become time.Time.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!timestamp" {
			var t time.Time
			if err := n.Decode(&t); err != nil {
				return nil, err
			}
			return t, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

// applySets evaluates each "path=expression" against values and stores the
// result at path, creating intermediate mappings. An expression that does
// not compile or run is stored as a literal string.
func applySets(values map[string]any, sets []string) error {
	for _, s := range sets {
		key, src, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q: want path=expression", s)
		}
		if err := setPath(values, key, evalValue(src, values)); err != nil {
			return fmt.Errorf("invalid --set %q: %w", s, err)
		}
	}
	return nil
}

func evalValue(src string, env map[string]any) any {
	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return src
	}
	v, err := expr.Run(program, env)
	if err != nil {
		return src
	}
	return v
}

func setPath(values map[string]any, path string, v any) error {
	parts := strings.Split(path, ".")
	cur := values
	for _, p := range parts[:len(parts)-1] {
		next, exists := cur[p]
		if !exists {
			m := map[string]any{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%q is a %T, not a mapping", p, next)
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = v
	return nil
}
