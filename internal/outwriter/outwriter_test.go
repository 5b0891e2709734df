package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, mode schema.OutputMode) *contract.Config {
	t.Helper()
	return &contract.Config{
		Output:        mode,
		OutputFile:    filepath.Join(t.TempDir(), "out"),
		Width:         120,
		HotspotWindow: 30,
		Day:           time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func readOutput(t *testing.T, cfg *contract.Config) string {
	t.Helper()
	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	return string(data)
}

func readCSV(t *testing.T, cfg *contract.Config) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(readOutput(t, cfg))).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleBatch() schema.BatchSummary {
	return schema.BatchSummary{
		Provider:   schema.GitHubProvider,
		Total:      2,
		Successful: 1,
		Failed:     1,
		Stored:     1,
		Duration:   1500 * time.Millisecond,
		Results: []schema.BatchResult{
			{
				Repository: schema.Repository{FullName: "acme/api"},
				Commits:    make([]schema.RemoteCommit, 3),
				Success:    true,
				Stored:     true,
				Backfill:   &schema.BackfillResult{Files: 4, CommitStats: 3, BlameLines: 12},
			},
			{
				Repository: schema.Repository{FullName: "acme/broken"},
				Error:      "not found",
			},
		},
	}
}

func TestPrintBatchSummary(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		cfg := testConfig(t, schema.CSVOut)
		require.NoError(t, NewOutWriter().WriteBatchSummary(sampleBatch(), cfg))
		records := readCSV(t, cfg)
		require.Len(t, records, 3)
		assert.Equal(t, "repository", records[0][1])
		assert.Equal(t, []string{"github", "acme/api", "true", "true", "3", "0", "4", "3", "12", ""}, records[1])
		assert.Equal(t, "not found", records[2][9])
	})

	t.Run("json", func(t *testing.T) {
		cfg := testConfig(t, schema.JSONOut)
		require.NoError(t, NewOutWriter().WriteBatchSummary(sampleBatch(), cfg))
		var decoded schema.BatchSummary
		require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
		assert.Equal(t, 2, decoded.Total)
		assert.Equal(t, "acme/broken", decoded.Results[1].Repository.FullName)
	})

	t.Run("text", func(t *testing.T) {
		cfg := testConfig(t, schema.TextOut)
		cfg.Backfill = true
		require.NoError(t, NewOutWriter().WriteBatchSummary(sampleBatch(), cfg))
		out := readOutput(t, cfg)
		assert.Contains(t, out, "acme/api")
		assert.Contains(t, out, "failed")
		assert.Contains(t, out, "acme/broken: not found")
		assert.Contains(t, out, "Processed 2 github repositories (1 successful, 1 failed, 1 stored) in 1.5s")
	})
}

func TestPrintLocalSummary(t *testing.T) {
	summary := schema.LocalSummary{
		RepoID:        uuid.NewString(),
		RepoPath:      "/src/app",
		Ref:           "main",
		Commits:       10,
		CommitStats:   9,
		Files:         5,
		BlameLines:    200,
		FailedCommits: 1,
		Duration:      time.Second,
	}

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, PrintLocalSummary(summary, cfg))
	records := readCSV(t, cfg)
	require.Len(t, records, 5)
	assert.Equal(t, []string{summary.RepoID, "/src/app", "main", "commit_stats", "9", "1"}, records[2])

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, PrintLocalSummary(summary, cfg))
	out := readOutput(t, cfg)
	assert.Contains(t, out, "Repository /src/app")
	assert.Contains(t, out, "completed with failures")
}

func TestPrintDailySummary(t *testing.T) {
	summary := schema.DailyJobSummary{
		Backend: schema.SQLiteBackend,
		Days: []schema.DailyJobDay{
			{Day: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Repos: 2, Users: 3, Commits: 7, Hotspots: 4, StatRowsScanned: 20},
			{Day: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Repos: 1},
		},
	}

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, PrintDailySummary(summary, cfg))
	records := readCSV(t, cfg)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2024-05-01", "2", "3", "7", "4", "0", "0", "0", "20", "0"}, records[1])

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, PrintDailySummary(summary, cfg))
	out := readOutput(t, cfg)
	assert.Contains(t, out, "2024-05-02")
	assert.Contains(t, out, "Computed 2 day(s) on sqlite")
}

func TestPrintHotspots(t *testing.T) {
	records := []schema.FileMetricsRecord{
		{Path: "core/engine.go", HotspotScore: 11.2, Churn: 400, Contributors: 6, CommitsCount: 20},
		{Path: "README.md", HotspotScore: 1.5, Churn: 10, Contributors: 1, CommitsCount: 2},
	}

	cfg := testConfig(t, schema.JSONOut)
	require.NoError(t, PrintHotspots(records, cfg, time.Second))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, cfg)), &decoded))
	require.Len(t, decoded, 2)
	assert.EqualValues(t, 1, decoded[0]["rank"])
	assert.Equal(t, contract.CriticalValue, decoded[0]["label"])
	assert.Equal(t, "core/engine.go", decoded[0]["path"])

	cfg = testConfig(t, schema.CSVOut)
	require.NoError(t, PrintHotspots(records, cfg, time.Second))
	rows := readCSV(t, cfg)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2", "README.md", "1.5000", contract.LowValue, "10", "1", "2", "0001-01-01"}, rows[2])

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, PrintHotspots(records, cfg, time.Second))
	out := readOutput(t, cfg)
	assert.Contains(t, out, "core/engine.go")
	assert.Contains(t, out, contract.CriticalValue)
	assert.Contains(t, out, "Showing top 2 files over 30 day(s) ending 2024-05-02 (total churn: 410)")
}

func TestPrintStoreStatus(t *testing.T) {
	synced := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	status := schema.StoreStatus{
		Backend:   schema.SQLiteBackend,
		Family:    schema.TransactionalFamily,
		Connected: true,
		Tables: []schema.TableStatus{
			{Name: "git_commits", Rows: 42, LastSynced: synced},
			{Name: "git_blame", Rows: 0},
		},
	}

	cfg := testConfig(t, schema.CSVOut)
	require.NoError(t, PrintStoreStatus(status, cfg))
	rows := readCSV(t, cfg)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"sqlite", "git_commits", "42", "2024-05-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "-", rows[2][3])

	cfg = testConfig(t, schema.TextOut)
	require.NoError(t, PrintStoreStatus(status, cfg))
	assert.Contains(t, readOutput(t, cfg), "Backend: sqlite (transactional) connected")
}

func TestGetMaxTablePathWidth(t *testing.T) {
	tests := []struct {
		width, reserved, expected int
	}{
		{200, 40, 70},
		{100, 40, 40},
		{60, 40, 15},
	}
	for _, tt := range tests {
		cfg := &contract.Config{Width: tt.width}
		assert.Equal(t, tt.expected, GetMaxTablePathWidth(cfg, tt.reserved))
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "ok", statusLabel(true, "ok", "failed", false))
	assert.Equal(t, "failed", statusLabel(false, "ok", "failed", false))
	assert.Contains(t, statusLabel(true, "ok", "failed", true), "ok")
}

func TestWriteWithFileCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.json")
	err := writeWithFile(path, func(w io.Writer) error {
		return writeJSON(w, map[string]int{"a": 1})
	}, "Wrote JSON")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(data))

	err = writeWithFile(filepath.Join(t.TempDir(), "missing", "out"), func(io.Writer) error { return nil }, "x")
	assert.Error(t, err)
}
