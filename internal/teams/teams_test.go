package teams

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadResolver(t *testing.T) {
	path := writeFile(t, "teams.yaml", `
teams:
  - id: platform
    name: Platform
    members: [Alice@Example.com, bob]
  - id: web
    members:
      - carol@example.com
      - bob
`)
	r, err := LoadResolver(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	tests := []struct {
		identity string
		id, name string
	}{
		{"alice@example.com", "platform", "Platform"},
		{"  ALICE@EXAMPLE.COM ", "platform", "Platform"},
		{"bob", "platform", "Platform"},
		{"carol@example.com", "web", "web"},
		{"mallory", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			id, name := r.Resolve(tt.identity)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestLoadResolverErrors(t *testing.T) {
	_, err := LoadResolver(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadResolver(writeFile(t, "bad.yaml", "teams: [\n"))
	assert.Error(t, err)

	_, err = LoadResolver(writeFile(t, "noid.yaml", "teams:\n  - name: Nameless\n"))
	assert.ErrorContains(t, err, "no id")
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	id, name := r.Resolve("anyone")
	assert.Empty(t, id)
	assert.Empty(t, name)
}

func TestLoadWorkItems(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml list", "items.yaml", `
- work_item_id: J-1
  provider: jira
  work_scope_id: CORE
  type: bug
  status: done
  assignees: [alice]
  story_points: 3
  created_at: 2024-05-01T09:00:00Z
  started_at: 2024-05-02T09:00:00Z
  completed_at: 2024-05-03T09:00:00Z
`},
		{"yaml document", "items.yml", `
work_items:
  - work_item_id: J-1
    provider: jira
    work_scope_id: CORE
    type: bug
    status: done
    assignees: [alice]
    story_points: 3
    created_at: 2024-05-01T09:00:00Z
    started_at: 2024-05-02T09:00:00Z
    completed_at: 2024-05-03T09:00:00Z
`},
		{"json list", "items.json", `[{"work_item_id":"J-1","provider":"jira","work_scope_id":"CORE","type":"bug","status":"done",
"assignees":["alice"],"story_points":3,"created_at":"2024-05-01T09:00:00Z","started_at":"2024-05-02T09:00:00Z","completed_at":"2024-05-03T09:00:00Z"}]`},
		{"json document", "items.JSON", `{"work_items":[{"work_item_id":"J-1","provider":"jira","work_scope_id":"CORE","type":"bug","status":"done",
"assignees":["alice"],"story_points":3,"created_at":"2024-05-01T09:00:00Z","started_at":"2024-05-02T09:00:00Z","completed_at":"2024-05-03T09:00:00Z"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := LoadWorkItems(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, items, 1)
			item := items[0]
			assert.Equal(t, "J-1", item.WorkItemID)
			assert.Equal(t, []string{"alice"}, item.Assignees)
			require.NotNil(t, item.StoryPoints)
			assert.InDelta(t, 3.0, *item.StoryPoints, 1e-9)
			assert.True(t, created.Equal(item.CreatedAt))
			require.NotNil(t, item.CompletedAt)
			assert.True(t, created.Add(48*time.Hour).Equal(*item.CompletedAt))
		})
	}
}

func TestLoadWorkItemsValidation(t *testing.T) {
	items, err := LoadWorkItems(writeFile(t, "empty.yaml", "\n"))
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = LoadWorkItems(writeFile(t, "noid.yaml", "- provider: jira\n  created_at: 2024-05-01T09:00:00Z\n"))
	assert.ErrorContains(t, err, "work_item_id")

	_, err = LoadWorkItems(writeFile(t, "nocreated.yaml", "- work_item_id: J-9\n"))
	assert.ErrorContains(t, err, "created_at")
}

func TestFileSource(t *testing.T) {
	path := writeFile(t, "items.yaml", "- work_item_id: J-1\n  created_at: 2024-05-01T09:00:00Z\n")
	items, err := FileSource{Path: path}.WorkItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: path}.WorkItems(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
