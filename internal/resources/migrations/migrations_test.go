package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestUpMigrationsAreIdempotent(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "*.up.sql")
	require.NoError(t, err)

	for _, name := range ups {
		body, err := fs.ReadFile(migrationFiles, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "IF NOT EXISTS", name)
	}
}

func TestLatest(t *testing.T) {
	version, err := Latest()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
