package gshttp_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gordian-engine/grandpa-accountable-safety/gsregistry"
	"github.com/gordian-engine/grandpa-accountable-safety/gshttp"
)

func newTestServer() *httptest.Server {
	reg := gsregistry.New(slog.Default())
	s := gshttp.NewServer(slog.Default(), reg)
	return httptest.NewServer(s.Router)
}

func voteJSONFor(name byte, target uint64, kind uint8, round uint64) map[string]any {
	voter := make([]byte, 32)
	voter[0] = name
	return map[string]any{
		"voter":  fmt.Sprintf("%x", voter),
		"target": target,
		"kind":   kind,
		"round":  round,
	}
}

func TestOpenThenReadStateAndQueries(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	openBody := map[string]any{
		"block_earlier": map[string]any{"block": 2, "round": 1},
		"commit_earlier": map[string]any{
			"round": 1, "block": 2,
			"precommits": []map[string]any{
				voteJSONFor(1, 2, 1, 1),
				voteJSONFor(2, 2, 1, 1),
				voteJSONFor(3, 2, 1, 1),
			},
		},
		"block_later": map[string]any{"block": 8, "round": 2},
		"commit_later": map[string]any{
			"round": 2, "block": 8,
			"precommits": []map[string]any{
				voteJSONFor(1, 8, 1, 2),
				voteJSONFor(2, 8, 1, 2),
				voteJSONFor(4, 8, 1, 2),
			},
		},
	}
	b, err := json.Marshal(openBody)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/instances", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var openResult map[string]uint64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&openResult))
	instance := openResult["instance"]
	require.Equal(t, uint64(1), instance)

	stateResp, err := http.Get(fmt.Sprintf("%s/instances/%d", srv.URL, instance))
	require.NoError(t, err)
	defer stateResp.Body.Close()
	require.Equal(t, http.StatusOK, stateResp.StatusCode)

	queriesResp, err := http.Get(fmt.Sprintf("%s/instances/%d/queries", srv.URL, instance))
	require.NoError(t, err)
	defer queriesResp.Body.Close()
	body, err := io.ReadAll(queriesResp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Addressees")
}

func TestOpenRejectsInvalidInput(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	openBody := map[string]any{
		"block_earlier":  map[string]any{"block": 2, "round": 1},
		"commit_earlier": map[string]any{"round": 1, "block": 2, "precommits": []map[string]any{voteJSONFor(1, 2, 1, 1)}},
		"block_later":    map[string]any{"block": 2, "round": 1},
		"commit_later":   map[string]any{"round": 1, "block": 2, "precommits": []map[string]any{voteJSONFor(1, 2, 1, 1)}},
	}
	b, err := json.Marshal(openBody)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/instances", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAbortUnknownInstance(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/instances/42/abort", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
