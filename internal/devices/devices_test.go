package devices

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procListing = `00-00: ALC892 Analog : ALC892 Analog : playback 1 : capture 1
00-01: ALC892 Digital : ALC892 Digital : playback 1
01-00: USB Audio : USB Audio : capture 1
02-03:  :  : capture 1
`

func TestParseProc(t *testing.T) {
	devices, err := ParseProc(strings.NewReader(procListing))
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{ID: "hw:0,0", Label: "ALC892 Analog"},
		{ID: "hw:1,0", Label: "USB Audio"},
		{ID: "hw:2,3", Label: "Microphone 3"},
	}, devices)
}

func TestProcEnumeratorMissingFile(t *testing.T) {
	devices, err := NewProcEnumerator(filepath.Join(t.TempDir(), "pcm")).Inputs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestExecEnumerator(t *testing.T) {
	enum, err := NewExecEnumerator(`printf 'default\tSystem default\nhw:1,0\n'`)
	require.NoError(t, err)
	devices, err := enum.Inputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{ID: "default", Label: "System default"},
		{ID: "hw:1,0", Label: "Microphone 2"},
	}, devices)
}

func TestExecEnumeratorFailure(t *testing.T) {
	enum, err := NewExecEnumerator("false")
	require.NoError(t, err)
	_, err = enum.Inputs(context.Background())
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcm")
	require.NoError(t, os.WriteFile(path, []byte(procListing), 0o644))

	enum, err := New(config.DevicesConfig{Mode: "proc", ProcPath: path})
	require.NoError(t, err)
	devices, err := enum.Inputs(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 3)

	enum, err = New(config.DevicesConfig{Mode: "static", Static: []config.StaticDevice{{ID: "mic"}}})
	require.NoError(t, err)
	devices, err = enum.Inputs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Microphone 1", devices[0].Label)

	_, err = New(config.DevicesConfig{Mode: "bluetooth"})
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	devices := []Device{{ID: "hw:0,0", Label: "Built-in"}, {ID: "hw:1,0", Label: "USB Audio"}}

	d, ok := Select(devices, "hw:1,0")
	require.True(t, ok)
	assert.Equal(t, "USB Audio", d.Label)

	d, ok = Select(devices, "USB Audio")
	require.True(t, ok)
	assert.Equal(t, "hw:1,0", d.ID)

	d, ok = Select(devices, "unplugged")
	require.True(t, ok)
	assert.Equal(t, "hw:0,0", d.ID)

	_, ok = Select(nil, "hw:1,0")
	assert.False(t, ok)
}

func TestSelectEmptyUsesSystemDefault(t *testing.T) {
	devices := []Device{{ID: "hw:0,0", Label: "Built-in"}, {ID: "hw:1,0", Label: "USB Audio"}}

	d, ok := Select(devices, "")
	require.True(t, ok)
	assert.Equal(t, DefaultDevice, d)
	assert.Empty(t, d.ID)

	d, ok = Select(nil, "")
	require.True(t, ok)
	assert.Empty(t, d.ID)
}

func TestDiagnose(t *testing.T) {
	assert.Equal(t, "No microphones detected. Please check your device settings.", Diagnose(nil))
	assert.Equal(t, "Detected 2 microphone(s). Check microphone permissions.", Diagnose([]Device{{ID: "a"}, {ID: "b"}}))
}
