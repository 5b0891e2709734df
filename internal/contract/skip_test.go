package contract

import (
	"testing"

	"github.com/huangsam/gitpulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"image.PNG", true},
		{"assets/video.avi", true},
		{"dist/archive.zip", true},
		{"release.tar.gz", true},
		{"vendor/lib.so", true},
		{"poetry.lock", true},
		{"fonts/Inter.WOFF2", true},
		{"main.go", false},
		{"Dockerfile", false},
		{".gitignore", false},
		{"src/app.ts", false},
		{"README.md", false},
		{"config/app.yaml", false},
		{"Makefile", false},
		{"docs/logo.svg", true}, // image/svg+xml via the MIME table
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSkippable(tt.path))
		})
	}
}

func TestDetectBackend(t *testing.T) {
	tests := []struct {
		conn    string
		want    schema.Backend
		wantErr bool
	}{
		{conn: "sqlite:///var/lib/gitpulse.db", want: schema.SQLiteBackend},
		{conn: "SQLITE3://relative.db", want: schema.SQLiteBackend},
		{conn: "postgres://u:p@h/db", want: schema.PostgresBackend},
		{conn: "postgresql://h/db", want: schema.PostgresBackend},
		{conn: "mysql://u:p@tcp(h:3306)/db", want: schema.MySQLBackend},
		{conn: "mongodb://h:27017", want: schema.MongoBackend},
		{conn: "mongodb+srv://cluster.example.net", want: schema.MongoBackend},
		{conn: "neo4j://h:7687", want: schema.Neo4jBackend},
		{conn: "bolt+s://h:7687", want: schema.Neo4jBackend},
		{conn: "parquet:///data/lake", want: schema.ParquetBackend},
		{conn: "clickhouse://h:9000", wantErr: true},
		{conn: "", wantErr: true},
		{conn: "just-a-path.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.conn, func(t *testing.T) {
			got, err := DetectBackend(tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectBackendNamesScheme(t *testing.T) {
	_, err := DetectBackend("redis://cache:6379")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'redis'")
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "/var/lib/x.db", StripScheme("sqlite:///var/lib/x.db"))
	assert.Equal(t, "root:pw@tcp(h:3306)/db", StripScheme("MySQL://root:pw@tcp(h:3306)/db"))
	assert.Equal(t, "plain", StripScheme("plain"))
}
