package logger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elmbridge/internal/bridge"
)

func sampleExchange() bridge.Exchange {
	return bridge.Exchange{
		Client:   "192.168.1.20:52110",
		Command:  "010C",
		Response: "41 0C 1A F8 \r\r>",
		Duration: 42 * time.Millisecond,
		Stamp:    time.Now(),
	}
}

func TestRecordWritesCSVRow(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: true, Path: dir})
	defer l.Close()

	l.Record(sampleExchange())
	l.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one data row")

	assert.Equal(t, csvHeader, rows[0])
	row := rows[1]
	assert.Equal(t, "192.168.1.20:52110", row[1])
	assert.Equal(t, "010C", row[2])
	assert.Equal(t, `41 0C 1A F8 \r\r>`, row[3])
	assert.Equal(t, "42", row[4])
	assert.Equal(t, "ok", row[5])
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: false, Path: dir})
	defer l.Close()

	l.Record(sampleExchange())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetEnabledTogglesAtRuntime(t *testing.T) {
	dir := t.TempDir()
	l := New(Config{Enabled: false, Path: dir})
	defer l.Close()

	l.Record(sampleExchange())
	l.SetEnabled(true)
	assert.True(t, l.IsEnabled())
	l.Record(sampleExchange())
	l.SetEnabled(false)
	l.Record(sampleExchange())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "no_link", classify("NO BLUETOOTH CONNECTION\r\n>"))
	assert.Equal(t, "error", classify("ERROR\r\n>"))
	assert.Equal(t, "ok", classify("OK\r\r>"))
}
