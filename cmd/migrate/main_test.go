package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsUnknownCommand(t *testing.T) {
	err := run(nil, "sideways", "migrations", "")
	assert.ErrorContains(t, err, "unknown command")
}

func TestRun_CreateRequiresName(t *testing.T) {
	err := run(nil, "create", t.TempDir(), "")
	assert.ErrorContains(t, err, "name is required")
}

func TestMigrationsHaveUpAndDown(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		content, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(content), "-- +goose Up"), file)
		assert.True(t, strings.Contains(string(content), "-- +goose Down"), file)
	}
	assert.Contains(t, files[len(files)-1], "sessions")
}
