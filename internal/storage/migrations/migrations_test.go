package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations_HaveGooseDirectives(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		b, err := fs.ReadFile(migrationFS, dir+"/"+e.Name())
		require.NoError(t, err)

		s := string(b)
		assert.Contains(t, s, "-- +goose Up", e.Name())
		assert.Contains(t, s, "-- +goose Down", e.Name())
	}
}

func TestEmbeddedMigrations_Schema(t *testing.T) {
	b, err := fs.ReadFile(migrationFS, dir+"/00001_init.sql")
	require.NoError(t, err)

	s := string(b)
	for _, want := range []string{
		"constraint author_name_key unique (name)",
		"constraint book_isbn_key unique (isbn)",
		"check (available_copies >= 0)",
		"references author (id) on delete restrict",
	} {
		assert.Contains(t, s, want)
	}
}
