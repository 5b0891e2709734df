package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// Backend represents a storage backend selected from a connection string.
	Backend string

	// BackendFamily groups backends by their write semantics.
	BackendFamily string

	// Provider represents a remote hosting provider.
	Provider string

	// SizeBucket classifies a commit by lines touched.
	SizeBucket string

	// BlameMode selects which files get line attribution during local extraction.
	BlameMode string
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	CSVOut  OutputMode = "csv"
	JSONOut OutputMode = "json"
)

// All storage backends supported.
const (
	SQLiteBackend   Backend = "sqlite"
	MySQLBackend    Backend = "mysql"
	PostgresBackend Backend = "postgres"
	MongoBackend    Backend = "mongo"
	Neo4jBackend    Backend = "neo4j"
	ParquetBackend  Backend = "parquet"
)

// Backend families.
const (
	TransactionalFamily BackendFamily = "transactional"
	UpsertFamily        BackendFamily = "upsert"
	AppendOnlyFamily    BackendFamily = "append-only"
)

// Remote providers.
const (
	GitHubProvider Provider = "github"
	GitLabProvider Provider = "gitlab"
	LocalProvider  Provider = "local"
)

// Commit size buckets.
const (
	SmallCommit  SizeBucket = "small"
	MediumCommit SizeBucket = "medium"
	LargeCommit  SizeBucket = "large"
)

// Blame modes.
const (
	BlameAll    BlameMode = "all"
	BlameNone   BlameMode = "none"
	BlameSample BlameMode = "sample" // default
)

// AggregateStatsMarker is written as both commit hash and file path of the
// synthetic stat row that carries totals a provider reported without a per-file breakdown.
const AggregateStatsMarker = "__aggregate__"

// UnknownIdentity is used when a row carries neither an email nor a name.
const UnknownIdentity = "unknown"

// UnassignedIdentity is the user bucket for work items without an assignee.
const UnassignedIdentity = "unassigned"

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	CSVOut:  {},
	JSONOut: {},
}

// ValidBlameModes lists all valid blame modes.
var ValidBlameModes = map[BlameMode]struct{}{
	BlameAll:    {},
	BlameNone:   {},
	BlameSample: {},
}

// Family returns the write-semantics family of the backend.
func (b Backend) Family() BackendFamily {
	switch b {
	case MongoBackend, Neo4jBackend:
		return UpsertFamily
	case ParquetBackend:
		return AppendOnlyFamily
	default:
		return TransactionalFamily
	}
}

// SupportsMetrics reports whether daily metrics can be loaded from and written to the backend.
func (b Backend) SupportsMetrics() bool {
	return b != Neo4jBackend
}
