package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betledger/internal/ledger"
	"betledger/internal/storage"
	"betledger/internal/tracker"
)

type failingKV struct{ *storage.MemoryStore }

func (f failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func setupServer(t *testing.T, kv storage.KV) http.Handler {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewStore(ctx, storage.NewLedgerPersister(kv, "bets"), nil)
	tr := tracker.New(ctx, store, storage.NewNoteStore(kv, "interestingOdds"), nil)
	return NewServer(tr, nil, nil, "").Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPingHandler(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())
	rr := do(t, h, http.MethodGet, "/api/ping", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	var response PingResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestBetLifecycle(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())

	rr := do(t, h, http.MethodPost, "/api/bets",
		`{"date":"2024-03-01","event":"Arsenal v Spurs","stake":"10","odds":"2","result":"win"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created BetResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Bet.ID)
	assert.Empty(t, created.Warning)

	rr = do(t, h, http.MethodPost, "/api/bets",
		`{"date":"2024-03-02","event":"Lakers","stake":"5","odds":"3"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/bets?filter=pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list BetsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Bets, 1)
	assert.Equal(t, "Lakers", list.Bets[0].Event)
	assert.Equal(t, 2, list.Counts.Total)
	assert.Equal(t, 1, list.Counts.Win)

	rr = do(t, h, http.MethodPut, "/api/bets/"+created.Bet.ID,
		`{"date":"2024-03-01","event":"Arsenal v Spurs","stake":"10","odds":"2","result":"lose"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/bets/"+created.Bet.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got BetResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, ledger.ResultLose, got.Bet.Result)

	rr = do(t, h, http.MethodDelete, "/api/bets/"+created.Bet.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/bets/"+created.Bet.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateBetValidation(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing event", `{"date":"2024-03-01","event":" ","stake":"10","odds":"2"}`, "event"},
		{"zero stake", `{"date":"2024-03-01","event":"A","stake":"0","odds":"2"}`, "stake"},
		{"bad odds", `{"date":"2024-03-01","event":"A","stake":"10","odds":"abc"}`, "odds"},
		{"bad result", `{"date":"2024-03-01","event":"A","stake":"10","odds":"2","result":"void"}`, "result"},
		{"bad date", `{"date":"yesterday","event":"A","stake":"10","odds":"2"}`, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/bets", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Contains(t, resp.Details, tt.field)
		})
	}

	rr := do(t, h, http.MethodPost, "/api/bets", `{"invalid json"`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/bets", "")
	var list BetsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Empty(t, list.Bets)
}

func TestUnknownIDAndFilter(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())

	rr := do(t, h, http.MethodPut, "/api/bets/nope",
		`{"date":"2024-03-01","event":"A","stake":"10","odds":"2"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodDelete, "/api/bets/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/bets?filter=void", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsAndSeries(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())
	do(t, h, http.MethodPost, "/api/bets", `{"date":"2024-03-01","event":"A","stake":"10","odds":"2","result":"win"}`)
	do(t, h, http.MethodPost, "/api/bets", `{"date":"2024-03-02","event":"B","stake":"5","odds":"3","result":"lose"}`)

	rr := do(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, "5", summary["net_profit"])
	assert.Equal(t, "15", summary["total_stake"])
	assert.Equal(t, "50", summary["win_rate"])

	rr = do(t, h, http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var series struct {
		Points []struct {
			Label  string `json:"label"`
			Profit string `json:"profit"`
		} `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &series))
	require.Len(t, series.Points, 2)
	assert.Equal(t, "01/03", series.Points[0].Label)
	assert.Equal(t, "10", series.Points[0].Profit)
	assert.Equal(t, "5", series.Points[1].Profit)
}

func TestNote(t *testing.T) {
	h := setupServer(t, storage.NewMemoryStore())

	rr := do(t, h, http.MethodPut, "/api/note", `{"text":"PSG @1.85"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/note", "")
	var note NoteBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &note))
	assert.Equal(t, "PSG @1.85", note.Text)
}

func TestPersistFailureIsAWarning(t *testing.T) {
	h := setupServer(t, failingKV{storage.NewMemoryStore()})

	rr := do(t, h, http.MethodPost, "/api/bets", `{"date":"2024-03-01","event":"A","stake":"10","odds":"2"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created BetResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Contains(t, created.Warning, "disk full")

	// the bet is still listed
	rr = do(t, h, http.MethodGet, "/api/bets", "")
	var list BetsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Bets, 1)

	rr = do(t, h, http.MethodPut, "/api/note", `{"text":"x"}`)
	var note NoteBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &note))
	assert.Contains(t, note.Warning, "note not saved")
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>bets</h1>"), 0o644))

	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store := ledger.NewStore(ctx, storage.NewLedgerPersister(kv, "bets"), nil)
	tr := tracker.New(ctx, store, storage.NewNoteStore(kv, "interestingOdds"), nil)
	h := NewServer(tr, nil, nil, dir).Router()

	rr := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>bets</h1>")
}

func TestCORSPreflight(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store := ledger.NewStore(ctx, storage.NewLedgerPersister(kv, "bets"), nil)
	tr := tracker.New(ctx, store, storage.NewNoteStore(kv, "interestingOdds"), nil)
	h := NewServer(tr, nil, nil, "").WithCORS([]string{"https://app.example.com"}).Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/bets", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
