package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unavailableClients struct {
	err error
}

func (u unavailableClients) NewStorageClient(context.Context) (*storage.Client, error) {
	return nil, u.err
}

func (u unavailableClients) NewPubSubClient(context.Context, string) (*pubsub.Client, error) {
	return nil, u.err
}

func useUnavailableClients(t *testing.T) {
	t.Helper()
	prev := clientFactory
	clientFactory = unavailableClients{err: errors.New("no credentials")}
	t.Cleanup(func() { clientFactory = prev })
}

func schedulePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setCheckEnv(t *testing.T, targetURL string) (dataDir, outputPath string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	dataDir = filepath.Join(dir, "data")
	outputPath = filepath.Join(dir, "github_output")
	t.Setenv("CAGEWATCH_TARGET_URL", targetURL)
	t.Setenv("WEBSITE_URL", "")
	t.Setenv("CAGEWATCH_DATA_DIR", dataDir)
	t.Setenv("CAGEWATCH_OUTPUT_PATH", outputPath)
	t.Setenv("CAGEWATCH_FETCHER_MODE", "static")
	t.Setenv("CAGEWATCH_LOGGING_DEVELOPMENT", "false")
	return dataDir, outputPath
}

func TestKeywordsCommand(t *testing.T) {
	out, err := execute(t, "keywords")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	assert.Equal(t, "Monday", lines[0])
	assert.Equal(t, "2:30", lines[14])
}

func TestMatchCommandInline(t *testing.T) {
	out, err := execute(t, "match", "Open Monday and Tuesday, slot at 2:30")
	require.NoError(t, err)
	assert.Equal(t, "Monday\nTuesday\n2:30\n", out)
}

func TestMatchCommandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visible_text.txt")
	require.NoError(t, os.WriteFile(path, []byte("FRI 12:30\nMONDAY"), 0o600))

	out, err := execute(t, "match", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "FRI\n", out)
}

func TestMatchCommandRequiresInput(t *testing.T) {
	_, err := execute(t, "match")
	require.Error(t, err)
}

func TestCheckCommandMissingURLIsFatal(t *testing.T) {
	setCheckEnv(t, "")

	_, err := execute(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.url")
}

func TestCheckCommandEndToEnd(t *testing.T) {
	body := "<html><body><h1>Schedule</h1><p>Monday</p><p>Friday 2:30</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dataDir, outputPath := setCheckEnv(t, srv.URL)
	require.NoError(t, os.MkdirAll(dataDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "previous_keywords.json"), []byte(`["Monday"]`), 0o600))

	_, err := execute(t, "check")
	require.NoError(t, err)

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "notify=true\nmessage=Cages updated with Friday, 2:30\n", string(out))

	raw, err := os.ReadFile(filepath.Join(dataDir, "previous_keywords.json"))
	require.NoError(t, err)
	var saved []string
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, []string{"Monday", "Friday", "2:30"}, saved)

	for _, name := range []string{"debug.log", "last_check_time.txt", "page_sample.txt", "visible_text.txt", "run.json"} {
		assert.FileExists(t, filepath.Join(dataDir, name))
	}
	logData, err := os.ReadFile(filepath.Join(dataDir, "debug.log"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(logData), "Debug log started at "))
}

func TestCheckCommandFetchFailureExitsCleanly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dataDir, outputPath := setCheckEnv(t, srv.URL)

	_, err := execute(t, "check")
	require.NoError(t, err)

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "notify=false\nmessage=Error checking website\n", string(out))
	assert.NoFileExists(t, filepath.Join(dataDir, "previous_keywords.json"))
}

func TestCheckCommandSidecarsUnavailableStillEmit(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "gcs mirror",
			env:  map[string]string{"CAGEWATCH_STORAGE_GCS_BUCKET": "cage-artifacts"},
		},
		{
			name: "pubsub",
			env: map[string]string{
				"CAGEWATCH_PUBSUB_PROJECT_ID": "proj",
				"CAGEWATCH_PUBSUB_TOPIC_NAME": "cages",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useUnavailableClients(t)
			srv := schedulePage(t, "<html><body><p>Monday</p></body></html>")
			dataDir, outputPath := setCheckEnv(t, srv.URL)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := execute(t, "check")
			require.NoError(t, err)

			out, err := os.ReadFile(outputPath)
			require.NoError(t, err)
			assert.Equal(t, "notify=true\nmessage=Cages updated with Monday\n", string(out))
			assert.FileExists(t, filepath.Join(dataDir, "last_check_time.txt"))
			assert.FileExists(t, filepath.Join(dataDir, "previous_keywords.json"))
		})
	}
}

func TestCheckCommandStateDatabaseDownExitsCleanly(t *testing.T) {
	srv := schedulePage(t, "<html><body><p>Monday</p></body></html>")
	dataDir, outputPath := setCheckEnv(t, srv.URL)
	t.Setenv("CAGEWATCH_STATE_BACKEND", "postgres")
	t.Setenv("CAGEWATCH_STATE_DSN", "postgres://cagewatch@127.0.0.1:1/cagewatch?connect_timeout=1")

	_, err := execute(t, "check")
	require.NoError(t, err)

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "notify=false\nmessage=Error checking website\n", string(out))
	assert.FileExists(t, filepath.Join(dataDir, "last_check_time.txt"))
}
