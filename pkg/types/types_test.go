// pkg/types/types_test.go
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFormat(t *testing.T) {
	for _, f := range ValidBackupFormats() {
		assert.True(t, f.IsValid(), f)
		assert.NotEqual(t, ".txt", f.GetFileExtension(), f)
	}
	assert.False(t, BackupFormat("pdf").IsValid())
	assert.Equal(t, ".db", FormatSQLite.GetFileExtension())
}

func TestFetchMode(t *testing.T) {
	assert.True(t, FetchModeHTTP.IsValid())
	assert.True(t, FetchModeBrowser.IsValid())
	assert.False(t, FetchMode("ftp").IsValid())
}

func TestCleanRecord_JSONMatchesSinkPayload(t *testing.T) {
	rec := CleanRecord{Name: "Phone", Price: 1299000, Rating: 4.5, RatingCount: 87, Description: "a | b", Key: "https://s/p/1"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "Phone", payload["name"])
	assert.Equal(t, 1299000.0, payload["price"])
	assert.Equal(t, 4.5, payload["average_rating"])
	assert.Equal(t, 87.0, payload["rating_count"])
	assert.Equal(t, "https://s/p/1", payload["address"])
}

func TestCleanRecord_Values(t *testing.T) {
	rec := CleanRecord{Name: "Phone", Price: 1200, Rating: 4, RatingCount: 3, Key: "k"}
	assert.Equal(t, []string{"Phone", "1200", "4", "3", "", "k"}, rec.Values())
	assert.Len(t, rec.Columns(), len(rec.Values()))

	rec.Rating = 4.25
	assert.Equal(t, "4.25", rec.Values()[2])
}

func TestDeliveryOutcome_String(t *testing.T) {
	assert.Equal(t, "created", OutcomeCreated.String())
	assert.Equal(t, "duplicate", OutcomeDuplicate.String())
	assert.Equal(t, "error", OutcomeError.String())
}

func TestReport_String(t *testing.T) {
	r := Report{Discovered: 5, Extracted: 4, Cleaned: 3, Summary: RunSummary{Created: 1, Duplicate: 2}}
	assert.Equal(t, "5 addresses | 4 extracted | 3 cleaned | 1 created | 2 duplicates | 0 errors", r.String())
	assert.Equal(t, 3, r.Summary.Total())
}
