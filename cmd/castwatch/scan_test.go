package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castwatch/castwatch/internal/config"
	"github.com/castwatch/castwatch/internal/monitor"
)

func TestDeviceRows(t *testing.T) {
	devices := []monitor.Device{
		{Name: "Den", Host: "192.168.1.22", Port: 8009},
		{Name: "Kitchen", Host: "192.168.1.21", Port: 8009, Model: "Nest Mini"},
		{Name: "Living Room", Host: "192.168.1.20", Port: 8009},
		{Name: "Office", Host: "192.168.1.23", Port: 8009},
	}
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	statuses := monitor.Snapshot{
		"Kitchen":     {ContentID: "abc", LastUpdated: updated},
		"Living Room": {ContentID: "xyz", Title: "Song B", LastUpdated: updated},
		"Office":      {LastUpdated: updated},
	}

	rows := deviceRows(devices, statuses)
	require.Len(t, rows, 4)

	assert.Equal(t, "no status", rows[0].Note)
	assert.Equal(t, "192.168.1.22:8009", rows[0].Address)
	assert.Equal(t, "abc", rows[1].Playing)
	assert.Equal(t, "Nest Mini", rows[1].Model)
	assert.Equal(t, "Song B", rows[2].Playing)
	assert.Equal(t, "idle", rows[3].Note)
	assert.Equal(t, 2, countPlaying(rows))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "0 devices", plural(0, "device"))
	assert.Equal(t, "1 device", plural(1, "device"))
	assert.Equal(t, "3 devices", plural(3, "device"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "castwatch", "config.yaml")
	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetIn(bytes.NewBufferString("n\n"))
	rootCmd.SetArgs([]string{"config", "init", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
	})

	require.NoError(t, rootCmd.Execute())
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	// An existing file is kept when the prompt is declined.
	out.Reset()
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Overwrite? [y/N]")
}
