package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madamis-ops/gmsync/internal/domain"
	domainerrors "github.com/madamis-ops/gmsync/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{
		URL:               server.URL + "/",
		Key:               "service-key",
		RequestsPerSecond: -1,
		HTTPClient:        server.Client(),
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return client
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Options{Key: "k"}, nil)
	assert.ErrorIs(t, err, domainerrors.ErrConfig)

	_, err = New(Options{URL: "https://db.example"}, nil)
	assert.ErrorIs(t, err, domainerrors.ErrConfig)
	assert.Equal(t, 2, domainerrors.ExitCode(err))
}

func TestClient_FetchScenarios(t *testing.T) {
	var gotPaths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/rest/v1/scenarios", r.URL.Path)
		assert.Equal(t, "id,title,author", r.URL.Query().Get("select"))
		gotPaths = append(gotPaths, r.URL.RawQuery)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": "s1", "title": "モノクローム", "author": "ドニパン"},
			{"id": "s2", "title": "深夜の羊", "author": null},
			{"id": "", "title": "壊れた行"}
		]`)
	})

	got, err := client.FetchScenarios(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.CanonicalScenario{
		{ID: "s1", Title: "モノクローム", Author: "ドニパン"},
		{ID: "s2", Title: "深夜の羊"},
	}, got)
	assert.Len(t, gotPaths, 1)
}

func TestClient_FetchScenarios_Paginates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		n := pageSize
		if offset >= pageSize {
			n = 3
		}
		rows := make([]map[string]string, n)
		for i := range rows {
			rows[i] = map[string]string{"id": strconv.Itoa(offset + i), "title": "t" + strconv.Itoa(offset+i)}
		}
		json.NewEncoder(w).Encode(rows)
	})

	got, err := client.FetchScenarios(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, pageSize+3)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  error
		wantExit int
	}{
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized, 4},
		{"forbidden", http.StatusForbidden, ErrUnauthorized, 4},
		{"not found", http.StatusNotFound, ErrNotFound, 4},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, 4},
		{"bad request", http.StatusBadRequest, ErrBadRequest, 4},
		{"server error", http.StatusBadGateway, ErrServer, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message": "nope"}`)
			})

			_, err := client.FetchScenarios(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domainerrors.ErrRemote)
			assert.Equal(t, tt.wantExit, domainerrors.ExitCode(err))

			var opErr *Error
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, "fetchScenarios", opErr.Op)
		})
	}
}

func TestClient_Canceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchStaffNames(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrCanceled)
	assert.Equal(t, 130, domainerrors.ExitCode(err))
}

type patchCall struct {
	table string
	id    string
	body  map[string]any
}

func recordingServer(t *testing.T, rows func(table, id string) int) (*Client, *[]patchCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []patchCall{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		table := r.URL.Path[len(restPath):]
		id := r.URL.Query().Get("id")[len("eq."):]
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))

		mu.Lock()
		calls = append(calls, patchCall{table: table, id: id, body: body})
		mu.Unlock()

		n := rows(table, id)
		if n < 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		out := make([]map[string]string, n)
		for i := range out {
			out[i] = map[string]string{"id": id}
		}
		json.NewEncoder(w).Encode(out)
	})
	return client, &calls
}

func TestClient_UpdateScenario(t *testing.T) {
	client, calls := recordingServer(t, func(table, id string) int { return 1 })

	out, err := client.UpdateScenario(context.Background(), domain.ScenarioUpdate{
		ID:              "s1",
		Title:           "モノクローム",
		Author:          "ドニパン",
		DurationMinutes: domain.IntPtr(150),
		Genres:          []string{"新作"},
	})
	require.NoError(t, err)
	assert.Equal(t, UpdateOutcome{Scenarios: 1, Masters: 1}, out)

	require.Len(t, *calls, 2)
	scen, master := (*calls)[0], (*calls)[1]
	assert.Equal(t, domain.TableScenarios, scen.table)
	assert.Equal(t, "s1", scen.id)
	assert.Equal(t, "ドニパン", scen.body["author"])
	assert.Equal(t, float64(150), scen.body["duration"])
	assert.Equal(t, []any{"新作"}, scen.body["genre"])
	assert.Contains(t, scen.body, "updated_at")

	assert.Equal(t, domain.TableScenarioMasters, master.table)
	assert.Equal(t, float64(150), master.body["official_duration"])
	assert.NotContains(t, master.body, "duration")
}

func TestClient_ApplyUpdates(t *testing.T) {
	client, calls := recordingServer(t, func(table, id string) int {
		switch id {
		case "missing":
			return 0
		case "broken":
			if table == domain.TableScenarios {
				return -1
			}
		}
		return 1
	})

	updates := []domain.ScenarioUpdate{
		{ID: "s1", Title: "モノクローム", PlayerCount: domain.IntPtr(7)},
		{ID: "empty", Title: "変更なし", Author: "不明"},
		{ID: "missing", Title: "消えた館", PlayerCount: domain.IntPtr(5)},
		{ID: "broken", Title: "壊れた館", PlayerCount: domain.IntPtr(4)},
	}

	tally := client.ApplyUpdates(context.Background(), updates)

	assert.Equal(t, 3, tally.Attempted)
	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 1, tally.ScenariosUpdated)
	assert.Equal(t, 2, tally.MastersUpdated)
	assert.Equal(t, 1, tally.NoRows)
	require.Len(t, tally.Failures, 1)
	assert.Equal(t, "壊れた館", tally.Failures[0].Title)
	assert.False(t, tally.Canceled)

	// The failing scenarios update does not stop its masters update.
	assert.Len(t, *calls, 6)
}

func TestClient_ApplyUpdates_Canceled(t *testing.T) {
	client, calls := recordingServer(t, func(string, string) int { return 1 })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tally := client.ApplyUpdates(ctx, []domain.ScenarioUpdate{{ID: "s1", PlayerCount: domain.IntPtr(3)}})

	assert.True(t, tally.Canceled)
	assert.Zero(t, tally.Attempted)
	assert.Empty(t, *calls)
}
