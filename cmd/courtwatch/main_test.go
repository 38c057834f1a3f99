package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/court_watch/internal/config"
	"github.com/bassista/court_watch/internal/emitter"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Feed: config.FeedConfig{
			Source:   "file",
			FilePath: filepath.Join(dir, "feed.json"),
			Attempts: 1,
			Timeout:  time.Second,
		},
		Store:  config.StoreConfig{Type: "file", FilePath: filepath.Join(dir, "snapshot.json")},
		Notify: config.NotifyConfig{Color: "never"},
		Server: config.ServerConfig{ShutDownTimeout: time.Second, TriggerInterval: time.Second, TriggerBurst: 1},
		Misc:   config.MiscConfig{Schedule: "@every 1h", ScheduleTZ: "UTC"},
	}
}

func writeFeed(t *testing.T, path string, courts ...int) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, n := range courts {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString(`{"District_Name":" Sha Tin ","Venue_Name":"Sha Tin Park","Available_Date":"2024-03-0` + strconv.Itoa(i+1) +
			`","Session_Start_Time":"19:00","Session_End_Time":"20:00","Available_Courts":` + strconv.Itoa(n) + `}`)
	}
	buf.WriteString("]")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestRun_ProcessRunsAcrossInvocations(t *testing.T) {
	cfg := testConfig(t.TempDir())

	// first invocation only stores the baseline
	writeFeed(t, cfg.Feed.FilePath, 0, 1)
	var out bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), cfg, &out))
	assert.Empty(t, out.String())

	// second invocation sees a new slot and an increase
	writeFeed(t, cfg.Feed.FilePath, 2, 3)
	out.Reset()
	assert.Equal(t, exitOK, run(context.Background(), cfg, &out))

	blocks, err := emitter.ExtractBlocks(&out)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Changes, 2)
	assert.Equal(t, "Sha Tin", blocks[0].Changes[0].District)

	// unchanged third invocation is silent
	out.Reset()
	assert.Equal(t, exitOK, run(context.Background(), cfg, &out))
	assert.Empty(t, out.String())
}

func TestRun_FetchFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())

	var out bytes.Buffer
	assert.Equal(t, exitFetchFailed, run(context.Background(), cfg, &out))
	_, err := os.Stat(cfg.Store.FilePath)
	assert.True(t, os.IsNotExist(err), "snapshot must not be written on fetch failure")
}

func TestRun_SetupFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Feed.Source = "carrier-pigeon"

	assert.Equal(t, exitSetup, run(context.Background(), cfg, &bytes.Buffer{}))
}
