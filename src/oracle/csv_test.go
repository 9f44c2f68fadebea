package oracle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeedFile(t *testing.T, dir, symbol, contents string) {
	t.Helper()

	err := os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(contents), 0644)
	require.NoError(t, err)
}

func TestCSVBarRepositoryLoad(t *testing.T) {
	t.Run("loads seed file", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "AAPL", `time,open,high,low,close,volume
2024-01-02T09:30:00Z,185.5,186.2,185.1,186.0,120000
2024-01-02T09:31:00Z,186.0,186.4,185.8,186.3,98000
`)

		repo := NewCSVBarRepository(dir)
		bars, found, err := repo.Load("AAPL")

		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, bars, 2)

		assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), bars[0].Timestamp)
		assert.Equal(t, 185.5, bars[0].Open)
		assert.Equal(t, 186.3, bars[1].Close)
		assert.Equal(t, 98000.0, bars[1].Volume)
	})

	t.Run("symbol lookup is case insensitive", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "TSLA", `time,open,high,low,close,volume
2024-01-02T09:30:00Z,250.0,251.0,249.5,250.5,50000
`)

		repo := NewCSVBarRepository(dir)
		_, found, err := repo.Load("tsla")

		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("missing file is not an error", func(t *testing.T) {
		repo := NewCSVBarRepository(t.TempDir())

		bars, found, err := repo.Load("MSFT")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, bars)
	})

	t.Run("malformed timestamp is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "BAD", `time,open,high,low,close,volume
not-a-time,1,1,1,1,1
`)

		repo := NewCSVBarRepository(dir)
		_, _, err := repo.Load("BAD")

		assert.Error(t, err)
	})
}
