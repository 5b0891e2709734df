package contract

import (
	"fmt"
	"strings"

	"github.com/huangsam/gitpulse/schema"
)

// backendPrefixes maps connection string prefixes to backends. Order matters:
// longer prefixes sharing a stem come first.
var backendPrefixes = []struct {
	prefix  string
	backend schema.Backend
}{
	{"sqlite3://", schema.SQLiteBackend},
	{"sqlite://", schema.SQLiteBackend},
	{"postgresql://", schema.PostgresBackend},
	{"postgres://", schema.PostgresBackend},
	{"mysql://", schema.MySQLBackend},
	{"mongodb+srv://", schema.MongoBackend},
	{"mongodb://", schema.MongoBackend},
	{"neo4j+ssc://", schema.Neo4jBackend},
	{"neo4j+s://", schema.Neo4jBackend},
	{"neo4j://", schema.Neo4jBackend},
	{"bolt+s://", schema.Neo4jBackend},
	{"bolt://", schema.Neo4jBackend},
	{"parquet://", schema.ParquetBackend},
}

// DetectBackend classifies a connection string by its scheme prefix (case-insensitive).
func DetectBackend(conn string) (schema.Backend, error) {
	trimmed := strings.TrimSpace(conn)
	if trimmed == "" {
		return "", fmt.Errorf("db connection string is empty (expected one of %s)", supportedPrefixes())
	}
	lower := strings.ToLower(trimmed)
	for _, p := range backendPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.backend, nil
		}
	}
	scheme, _, found := strings.Cut(lower, "://")
	if !found {
		scheme = lower
	}
	return "", fmt.Errorf("unsupported db scheme '%s' (expected one of %s)", scheme, supportedPrefixes())
}

// StripScheme returns the connection string without its scheme prefix.
func StripScheme(conn string) string {
	trimmed := strings.TrimSpace(conn)
	lower := strings.ToLower(trimmed)
	for _, p := range backendPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return trimmed[len(p.prefix):]
		}
	}
	return trimmed
}

func supportedPrefixes() string {
	names := make([]string, 0, len(backendPrefixes))
	for _, p := range backendPrefixes {
		names = append(names, p.prefix)
	}
	return strings.Join(names, ", ")
}
