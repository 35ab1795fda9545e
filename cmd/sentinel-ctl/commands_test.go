package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"sentinel-guard/internal/client"
	"sentinel-guard/internal/session"
	"sentinel-guard/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func success(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"code": 1, "msg": "success", "data": data})
}

func newTestApp(t *testing.T, handler http.Handler) (*app, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sess, err := session.Open(filepath.Join(t.TempDir(), session.DefaultFileName))
	require.NoError(t, err)

	config := utils.GetDefaultConfig()
	out := &bytes.Buffer{}
	return &app{
		config: config,
		logger: logger,
		sess:   sess,
		api:    client.NewAPIClient(client.APIConfig{BaseURL: srv.URL}, sess, logger),
		out:    out,
	}, out
}

func TestLoginAndWhoami(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		success(w, map[string]interface{}{
			"token": "tok-1",
			"user":  map[string]interface{}{"username": "admin", "role": "admin"},
		})
	})
	a, out := newTestApp(t, mux)

	require.NoError(t, a.dispatch(context.Background(), []string{"login", "-u", "admin", "-p", "admin123"}))
	assert.Contains(t, out.String(), "Logged in as admin")
	assert.Equal(t, "tok-1", a.sess.Token())

	out.Reset()
	require.NoError(t, a.dispatch(context.Background(), []string{"whoami"}))
	assert.Equal(t, "admin (admin)\n", out.String())

	require.NoError(t, a.dispatch(context.Background(), []string{"logout"}))
	assert.ErrorIs(t, a.dispatch(context.Background(), []string{"whoami"}), client.ErrUnauthorized)
}

func TestTrendExport(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/analysis/trend", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7d", r.URL.Query().Get("range"))
		success(w, []map[string]interface{}{
			{"time": "2026-10-18", "count": 4},
			{"time": "2026-10-19", "count": 0},
		})
	})
	a, out := newTestApp(t, mux)

	path := filepath.Join(t.TempDir(), "trend.csv")
	require.NoError(t, a.dispatch(context.Background(), []string{"trend", "-range", "7d", "-o", path}))
	assert.Contains(t, out.String(), "Exported to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Time,Attacks,Traffic(Bytes)\n2026-10-18,4,0\n2026-10-19,0,0\n", string(data))
}

func TestHostsTableAndJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/collection/host", func(w http.ResponseWriter, r *http.Request) {
		success(w, map[string]interface{}{
			"total":   1,
			"records": []map[string]interface{}{{"id": 3, "hostIp": "10.0.0.5", "collectFreq": 60, "collectStatus": 1}},
		})
	})
	a, out := newTestApp(t, mux)

	require.NoError(t, a.dispatch(context.Background(), []string{"hosts"}))
	assert.Contains(t, out.String(), "10.0.0.5")
	assert.Contains(t, out.String(), "running")

	out.Reset()
	a.asJSON = true
	require.NoError(t, a.dispatch(context.Background(), []string{"hosts", "list"}))
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
}

func TestDispatchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dashboard/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a, _ := newTestApp(t, mux)

	assert.ErrorIs(t, a.dispatch(context.Background(), []string{"nope"}), errUsage)
	assert.ErrorIs(t, a.dispatch(context.Background(), []string{"block"}), errUsage)
	assert.ErrorIs(t, a.dispatch(context.Background(), []string{"ip", "drop", "1.2.3.4"}), errUsage)

	err := a.dispatch(context.Background(), []string{"dashboard"})
	assert.True(t, errors.Is(err, client.ErrUnauthorized), "got %v", err)
}

func TestSubcommand(t *testing.T) {
	sub, rest := subcommand(nil, "list")
	assert.Equal(t, "list", sub)
	assert.Empty(t, rest)

	sub, rest = subcommand([]string{"-json"}, "list")
	assert.Equal(t, "list", sub)
	assert.Equal(t, []string{"-json"}, rest)

	sub, rest = subcommand([]string{"delete", "4"}, "list")
	assert.Equal(t, "delete", sub)
	assert.Equal(t, []string{"4"}, rest)
}
