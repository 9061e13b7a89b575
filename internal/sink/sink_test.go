// internal/sink/sink_test.go
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/pkg/types"
)

// recordsAPI is a minimal in-memory records service.
type recordsAPI struct {
	mu      sync.Mutex
	records []map[string]interface{}
	failGet bool
	failPut bool
}

func (a *recordsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if a.failGet {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := []map[string]interface{}{}
		for i := offset; i < len(a.records) && i < offset+limit; i++ {
			page = append(page, a.records[i])
		}
		json.NewEncoder(w).Encode(page)
	case http.MethodPost:
		if a.failPut {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"bad"}`))
			return
		}
		var rec map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, existing := range a.records {
			if existing["address"] == rec["address"] {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		a.records = append(a.records, rec)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(rec)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNewHTTPSink_Endpoint(t *testing.T) {
	s, err := NewHTTPSink("http://localhost:8000", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/records", s.Endpoint())

	s, err = NewHTTPSink("http://localhost:8000/api/", "/registros/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/registros/", s.Endpoint())

	_, err = NewHTTPSink("localhost", "/records", time.Second)
	assert.Error(t, err)
}

func TestHTTPSink_SubmitAndList(t *testing.T) {
	api := &recordsAPI{}
	server := httptest.NewServer(api)
	defer server.Close()

	s, err := NewHTTPSink(server.URL, "/records", time.Second)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rec := types.CleanRecord{Name: "Phone", Price: 1299, Rating: 4.5, RatingCount: 120, Key: "https://s/p/1"}

	outcome, err := s.Submit(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCreated, outcome)

	outcome, err = s.Submit(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeDuplicate, outcome)

	require.Len(t, api.records, 1)
	assert.Equal(t, 4.5, api.records[0]["average_rating"])
	assert.Equal(t, 120.0, api.records[0]["rating_count"])

	keys, err := s.ListKeys(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://s/p/1"}, keys)

	keys, err = s.ListKeys(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHTTPSink_Errors(t *testing.T) {
	api := &recordsAPI{failGet: true, failPut: true}
	server := httptest.NewServer(api)
	defer server.Close()

	s, err := NewHTTPSink(server.URL, "/records", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.ListKeys(ctx, 0, 10)
	assert.Error(t, err)

	outcome, err := s.Submit(ctx, types.CleanRecord{Name: "x", Key: "k"})
	assert.Error(t, err)
	assert.Equal(t, types.OutcomeError, outcome)
	assert.Contains(t, err.Error(), "422")
}

func TestHTTPSink_NullPageEndsScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}))
	defer server.Close()

	s, err := NewHTTPSink(server.URL, "/records", time.Second)
	require.NoError(t, err)

	keys, err := s.ListKeys(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHTTPSink_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	s, err := NewHTTPSink(url, "/records", 200*time.Millisecond)
	require.NoError(t, err)

	outcome, err := s.Submit(context.Background(), types.CleanRecord{Name: "x", Key: "k"})
	assert.Error(t, err)
	assert.Equal(t, types.OutcomeError, outcome)
}

func TestSQLSink_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.SinkConfig{
		Type: "sql",
		SQL: config.SQLSinkConfig{
			Driver:      "sqlite3",
			DSN:         filepath.Join(t.TempDir(), "sink.db"),
			Table:       "records",
			CreateTable: true,
		},
	}

	s, err := New(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()

	records := []types.CleanRecord{
		{Name: "A", Price: 1, Key: "https://s/p/1"},
		{Name: "B", Price: 2, Rating: 3.5, RatingCount: 4, Description: "x | y", Key: "https://s/p/2"},
		{Name: "C", Price: 3, Key: "https://s/p/3"},
	}
	for _, r := range records {
		outcome, err := s.Submit(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, types.OutcomeCreated, outcome)
	}

	outcome, err := s.Submit(ctx, records[1])
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeDuplicate, outcome)

	page, err := s.ListKeys(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://s/p/1", "https://s/p/2"}, page)

	page, err = s.ListKeys(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://s/p/3"}, page)

	page, err = s.ListKeys(ctx, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestSQLSink_InvalidSettings(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, config.SinkConfig{Type: "ftp"})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = OpenSQLSink(ctx, config.SQLSinkConfig{Driver: "sqlite3"})
	assert.Error(t, err)

	_, err = OpenSQLSink(ctx, config.SQLSinkConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "x.db"), Table: "bad;name"})
	assert.Error(t, err)
}

func TestDialects_InsertStatements(t *testing.T) {
	assert.NotContains(t, dialects["mysql"].insertPrefix, "IGNORE")
	assert.Equal(t, " ON DUPLICATE KEY UPDATE id = id", dialects["mysql"].insertSuffix)
	assert.Equal(t, "$3", dialects["postgres"].placeholder(3))
	assert.Contains(t, dialects["postgres"].insertSuffix, "DO NOTHING")
}

func TestSQLSink_KeyLongerThanColumnIsAnError(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "mysql-dialect.db"))
	require.NoError(t, err)

	s, err := NewSQLSink(ctx, db, "mysql", "records", false)
	require.NoError(t, err)
	defer s.Close()

	long := "https://s/p/" + strings.Repeat("a", 800)
	outcome, err := s.Submit(ctx, types.CleanRecord{Name: "A", Price: 1, Key: long})
	assert.Error(t, err)
	assert.Equal(t, types.OutcomeError, outcome)
}
