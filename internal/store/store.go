// Package store persists git facts and derived metrics in relational, document,
// graph and columnar backends behind one set of contracts.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedBackend is returned when a connection string names no known backend.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")

	// ErrUnsupportedOperation is returned by backends that cannot serve a call, such as
	// metrics reads on the graph store.
	ErrUnsupportedOperation = errors.New("operation not supported by storage backend")
)

// Fact and metric table names. Document and columnar backends reuse them for
// collections and directories.
const (
	reposTable         = "repos"
	gitFilesTable      = "git_files"
	gitCommitsTable    = "git_commits"
	gitCommitStatTable = "git_commit_stats"
	gitBlameTable      = "git_blame"
	gitPRTable         = "git_pull_requests"

	repoMetricsTable         = "repo_metrics_daily"
	userMetricsTable         = "user_metrics_daily"
	commitMetricsTable       = "commit_metrics"
	fileMetricsTable         = "file_metrics_daily"
	workItemMetricsTable     = "work_item_metrics_daily"
	workItemUserMetricsTable = "work_item_user_metrics_daily"
	workItemCycleTimesTable  = "work_item_cycle_times"
)

// factTables lists the fact tables in the order status reports them.
var factTables = []string{
	reposTable, gitFilesTable, gitCommitsTable, gitCommitStatTable, gitBlameTable, gitPRTable,
}

// Open classifies conn and opens the matching store. Relational stores run their
// migrations before returning.
func Open(ctx context.Context, conn string, log *zap.Logger) (contract.FactStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	backend, err := contract.DetectBackend(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedBackend, err)
	}
	log = log.With(zap.String("backend", string(backend)))

	switch backend {
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgresBackend:
		return OpenSQL(ctx, backend, conn, log)
	case schema.MongoBackend:
		return OpenMongo(ctx, conn, log)
	case schema.Neo4jBackend:
		return OpenNeo4j(ctx, conn, log)
	case schema.ParquetBackend:
		return OpenParquet(conn, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}

// AsMetricsBackend returns the metrics side of a store, or ErrUnsupportedOperation
// when the backend only holds facts.
func AsMetricsBackend(fs contract.FactStore) (contract.MetricsBackend, error) {
	if !fs.Backend().SupportsMetrics() {
		return nil, fmt.Errorf("%w: %s does not support daily metrics", ErrUnsupportedOperation, fs.Backend())
	}
	mb, ok := fs.(contract.MetricsBackend)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support daily metrics", ErrUnsupportedOperation, fs.Backend())
	}
	return mb, nil
}

// Natural keys shared by the document and columnar stores.

func fileKey(f schema.GitFile) string { return f.RepoID.String() + ":" + f.Path }

func commitKey(c schema.GitCommit) string { return c.RepoID.String() + ":" + c.Hash }

func statKey(s schema.GitCommitStat) string {
	return s.RepoID.String() + ":" + s.CommitHash + ":" + s.FilePath
}

func blameKey(b schema.GitBlame) string {
	return fmt.Sprintf("%s:%s:%d", b.RepoID, b.Path, b.LineNo)
}

func prKey(p schema.GitPullRequest) string {
	return fmt.Sprintf("%s:%d", p.RepoID, p.Number)
}

func repoMetricKey(r schema.RepoMetricsDailyRecord) string {
	return r.RepoID.String() + ":" + r.Day.Format(contract.DateFormat)
}

func userMetricKey(r schema.UserMetricsDailyRecord) string {
	return r.RepoID.String() + ":" + r.Day.Format(contract.DateFormat) + ":" + r.AuthorEmail
}

func commitMetricKey(r schema.CommitMetricsRecord) string {
	return r.RepoID.String() + ":" + r.Day.Format(contract.DateFormat) + ":" + r.CommitHash
}

func fileMetricKey(r schema.FileMetricsRecord) string {
	return r.RepoID.String() + ":" + r.Day.Format(contract.DateFormat) + ":" + r.Path
}

func workItemMetricKey(r schema.WorkItemMetricsDailyRecord) string {
	return r.Day.Format(contract.DateFormat) + ":" + r.Provider + ":" + r.WorkScopeID + ":" + r.TeamID
}

func workItemUserMetricKey(r schema.WorkItemUserMetricsDailyRecord) string {
	return r.Day.Format(contract.DateFormat) + ":" + r.Provider + ":" + r.WorkScopeID + ":" + r.UserIdentity + ":" + r.TeamID
}

func cycleTimeKey(r schema.WorkItemCycleTimeRecord) string {
	return r.Provider + ":" + r.WorkItemID
}
