package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/devices"
	"github.com/loqalabs/loqa-interview/internal/eventstore"
	"github.com/loqalabs/loqa-interview/internal/protocol"
	"github.com/loqalabs/loqa-interview/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","questions":[{"id":7,"category":"Behavioral","question":"Tell me about a conflict."}]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Backend.URL = srv.URL

	var out strings.Builder
	require.NoError(t, listQuestions(context.Background(), cfg, discardLogger(), &out))
	assert.Contains(t, out.String(), "Behavioral")
	assert.Contains(t, out.String(), "Tell me about a conflict.")
}

func TestListDevicesMarksSelection(t *testing.T) {
	cfg := config.Default()
	cfg.Devices.Mode = "static"
	cfg.Devices.Static = []config.StaticDevice{{ID: "hw:0,0", Label: "Built-in"}, {ID: "hw:1,0", Label: "USB Mic"}}
	cfg.Devices.Selected = "USB Mic"

	var out strings.Builder
	require.NoError(t, listDevices(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "* hw:1,0\tUSB Mic")
	assert.Contains(t, out.String(), "  hw:0,0\tBuilt-in")
	assert.Contains(t, out.String(), "Detected 2 microphone(s).")
}

func TestListSessions(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.EventStore.Path = filepath.Join(dir, "events.db")
	cfg.Results.Directory = filepath.Join(dir, "results")

	ctx := context.Background()
	store, err := eventstore.Open(ctx, cfg.EventStore, discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.BeginSession(ctx, eventstore.Session{ID: "abc", QuestionCount: 3}))
	require.NoError(t, store.FinishSession(ctx, "abc", true, 81.5))
	require.NoError(t, store.Close())

	summary := report.NewSummary("abc", "", 3, time.Now())
	summary.Add(protocol.Question{ID: 1}, protocol.ScoreReport{OverallScore: 81.5}, 1)
	summary.Finish(time.Now(), false)
	_, err = summary.WriteJSON(cfg.Results.Directory)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, listSessions(ctx, cfg, discardLogger(), &out, 10))
	assert.Contains(t, out.String(), "abc")
	assert.Contains(t, out.String(), "81.5")
	assert.Contains(t, out.String(), "1/3")
}

func TestSelectDeviceKeepsSystemDefault(t *testing.T) {
	enumerator := devices.NewStaticEnumerator([]devices.Device{{ID: "hw:0,0"}, {ID: "hw:1,0"}})

	assert.Empty(t, selectDevice(context.Background(), enumerator, "", discardLogger()))
	assert.Equal(t, "hw:1,0", selectDevice(context.Background(), enumerator, "hw:1,0", discardLogger()))
	assert.Equal(t, "hw:0,0", selectDevice(context.Background(), enumerator, "unplugged", discardLogger()))
}

func TestListDevicesMarksDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Devices.Mode = "static"
	cfg.Devices.Static = []config.StaticDevice{{ID: "hw:0,0", Label: "Built-in"}}

	var out strings.Builder
	require.NoError(t, listDevices(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "* default\tDefault Microphone")
	assert.Contains(t, out.String(), "  hw:0,0\tBuilt-in")
}
