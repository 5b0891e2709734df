package remote

import (
	"testing"

	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRepoPattern(t *testing.T) {
	tests := []struct {
		name, pattern string
		want          bool
	}{
		{"acme/api", "acme/*", true},
		{"ACME/Api", "acme/api", true},
		{"acme/api", "other/*", false},
		{"acme/team/api", "acme/*", true},
		{"acme/api-v2", "acme/api-v?", true},
		{"acme/api-v2", "acme/api-v[0-9]", true},
		{"acme/api-vx", "acme/api-v[!0-9]", true},
		{"acme/api.go", "acme/api.go", true},
		{"acme/apixgo", "acme/api.go", false},
		{"acme/api", "*/api", true},
	}
	for _, tt := range tests {
		t.Run(tt.name+"~"+tt.pattern, func(t *testing.T) {
			got, err := MatchRepoPattern(tt.name, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterByPattern(t *testing.T) {
	repos := []schema.Repository{
		{FullName: "acme/api"}, {FullName: "acme/web"}, {FullName: "acme/api-admin"}, {FullName: "other/api"},
	}
	got, err := FilterByPattern(repos, "acme/api*", 0)
	require.NoError(t, err)
	assert.Equal(t, []schema.Repository{{FullName: "acme/api"}, {FullName: "acme/api-admin"}}, got)

	capped, err := FilterByPattern(repos, "*", 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	none, err := FilterByPattern(repos, "nobody/*", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInvalidPatternIsAnError(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"reversed range", "acme/[z-a]"},
		{"reversed range after negation", "acme/api-[!9-0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MatchRepoPattern("acme/api", tt.pattern)
			require.ErrorIs(t, err, ErrInvalidPattern)

			_, err = FilterByPattern([]schema.Repository{{FullName: "acme/api"}}, tt.pattern, 0)
			require.ErrorIs(t, err, ErrInvalidPattern)
		})
	}
}

func TestRepoMatcherStopsAtCap(t *testing.T) {
	m, err := newRepoMatcher("acme/*", 2)
	require.NoError(t, err)
	assert.True(t, m.add([]schema.Repository{{FullName: "acme/a"}, {FullName: "other/b"}}))
	assert.False(t, m.add([]schema.Repository{{FullName: "acme/c"}, {FullName: "acme/d"}}))
	assert.Equal(t, []schema.Repository{{FullName: "acme/a"}, {FullName: "acme/c"}}, m.matched)
}

func TestPatternOwner(t *testing.T) {
	owner, ok := PatternOwner("acme/*")
	assert.True(t, ok)
	assert.Equal(t, "acme", owner)

	_, ok = PatternOwner("ac*/api")
	assert.False(t, ok)
	_, ok = PatternOwner("api")
	assert.False(t, ok)
}

func TestResolveFilter(t *testing.T) {
	assert.Equal(t, schema.RepoFilter{User: "acme"}, resolveFilter(schema.RepoFilter{}, "acme/*"))
	assert.Equal(t, schema.RepoFilter{Org: "corp"}, resolveFilter(schema.RepoFilter{Org: "corp"}, "acme/*"))
	assert.Equal(t, schema.RepoFilter{}, resolveFilter(schema.RepoFilter{}, "*/api"))
}
