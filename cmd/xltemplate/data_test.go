package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseData_YAML(t *testing.T) {
	values, err := parseData([]byte(`
title: Quarterly
issued: 2024-01-01
label: '2024-01-01'
items:
  - name: pen
    qty: 2
  - name: ink
    qty: 1.5
base: &base {x: 1}
copy: *base
`))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly", values["title"])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), values["issued"])
	assert.Equal(t, "2024-01-01", values["label"])
	assert.Equal(t, []any{
		map[string]any{"name": "pen", "qty": 2},
		map[string]any{"name": "ink", "qty": 1.5},
	}, values["items"])
	assert.Equal(t, map[string]any{"x": 1}, values["copy"])
}

func TestParseData_JSON(t *testing.T) {
	values, err := parseData([]byte(`{"a": 1.5, "b": [1, "two"], "c": null, "d": true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": 1.5,
		"b": []any{1, "two"},
		"c": nil,
		"d": true,
	}, values)
}

func TestParseData_EdgeCases(t *testing.T) {
	values, err := parseData(nil)
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = parseData([]byte("- 1\n- 2\n"))
	assert.ErrorContains(t, err, "want a mapping")

	_, err = parseData([]byte("a: [1, 2"))
	assert.Error(t, err)
}

func TestLoadDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Bob\n"), 0o644))
	values, err := loadDataFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Bob"}, values)

	_, err = loadDataFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read data file")
}

func TestApplySets(t *testing.T) {
	values := map[string]any{"price": 2}
	require.NoError(t, applySets(values, []string{
		"total=price * 3",
		`title="Q3"`,
		"greeting=hello world",
		"nested.deep.v=1 + 1",
		"list=[1, 2]",
		"flag = true",
	}))

	assert.Equal(t, 6, values["total"])
	assert.Equal(t, "Q3", values["title"])
	assert.Equal(t, "hello world", values["greeting"])
	assert.Equal(t, map[string]any{"deep": map[string]any{"v": 2}}, values["nested"])
	assert.Equal(t, []any{1, 2}, values["list"])
	assert.Equal(t, true, values["flag"])
}

func TestApplySets_Invalid(t *testing.T) {
	assert.Error(t, applySets(map[string]any{}, []string{"=1"}))
	assert.Error(t, applySets(map[string]any{}, []string{"novalue"}))
	assert.ErrorContains(t, applySets(map[string]any{"a": 1}, []string{"a.b=2"}), "not a mapping")
}

func TestSetPath(t *testing.T) {
	values := map[string]any{"a": map[string]any{"keep": 1}}
	require.NoError(t, setPath(values, "a.b.c", "x"))
	require.NoError(t, setPath(values, "top", 3))
	assert.Equal(t, map[string]any{
		"a":   map[string]any{"keep": 1, "b": map[string]any{"c": "x"}},
		"top": 3,
	}, values)
}
