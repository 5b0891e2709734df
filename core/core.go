// Package core has the service entry points shared by the CLI and the MCP server.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/core/algo"
	"github.com/huangsam/gitpulse/core/batch"
	"github.com/huangsam/gitpulse/core/metrics"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/internal/gitclient"
	"github.com/huangsam/gitpulse/internal/outwriter"
	"github.com/huangsam/gitpulse/internal/ratelimit"
	"github.com/huangsam/gitpulse/internal/remote"
	"github.com/huangsam/gitpulse/internal/store"
	"github.com/huangsam/gitpulse/internal/teams"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

// ExecutorFunc defines the function signature for executing CLI commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, log *zap.Logger) error

// StoreOpener opens the fact store named by a connection string.
type StoreOpener func(ctx context.Context, conn string, log *zap.Logger) (contract.FactStore, error)

// OpenStore is the opener used by the Execute* entry points.
var OpenStore StoreOpener = store.Open

// SyncLocal extracts the repository at cfg.RepoPath into fs.
func SyncLocal(ctx context.Context, cfg *contract.Config, fs contract.FactStore, log *zap.Logger) (schema.LocalSummary, error) {
	extractor, err := gitclient.NewExtractor(cfg, fs, log)
	if err != nil {
		return schema.LocalSummary{}, err
	}
	return extractor.Run(ctx)
}

// NewConnector builds the connector for provider from the configured credentials.
func NewConnector(cfg *contract.Config, provider schema.Provider, log *zap.Logger) (contract.Connector, error) {
	switch provider {
	case schema.GitHubProvider:
		c, err := remote.NewGitHubConnector(remote.GitHubConfig{
			Token:       cfg.GitHubToken,
			BaseURL:     cfg.GitHubBaseURL,
			HTTPTimeout: cfg.HTTPTimeout,
			Retry:       remote.GitHubRetryPolicy(),
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	case schema.GitLabProvider:
		c, err := remote.NewGitLabConnector(remote.GitLabConfig{
			Token:       cfg.GitLabToken,
			BaseURL:     cfg.GitLabURL,
			HTTPTimeout: cfg.HTTPTimeout,
			Retry:       remote.GitLabRetryPolicy(),
		}, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// SyncRemote runs a batch sync of every repository the connector lists for cfg.Filter
// and cfg.Pattern. Results that are already written survive a cancelled context.
func SyncRemote(ctx context.Context, cfg *contract.Config, connector contract.Connector, fs contract.FactStore, log *zap.Logger) (schema.BatchSummary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gate := ratelimit.NewGate(ratelimit.Config{
		Initial:           cfg.RateLimitDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	opts := batch.OptionsFromConfig(cfg)
	opts.OnResult = func(r schema.BatchResult) {
		fields := []zap.Field{
			zap.String("repo", r.Repository.FullName),
			zap.Bool("stored", r.Stored),
			zap.Int("commits", len(r.Commits)),
			zap.Int("pull_requests", len(r.PullRequests)),
		}
		if r.Error != "" {
			log.Warn("Repository failed", append(fields, zap.String("error", r.Error))...)
			return
		}
		log.Info("Repository synced", fields...)
	}
	return batch.NewOrchestrator(connector, fs, gate, opts, log).Run(ctx, cfg.Filter, cfg.Pattern)
}

// newDailyJob wires the optional teams and work-items files into a job over fs.
func newDailyJob(cfg *contract.Config, fs contract.FactStore, log *zap.Logger) (*metrics.DailyJob, error) {
	backend, err := store.AsMetricsBackend(fs)
	if err != nil {
		return nil, err
	}
	opts := metrics.JobOptions{
		Backend:           fs.Backend(),
		HotspotWindowDays: cfg.HotspotWindow,
		CommitMetrics:     cfg.CommitMetrics,
	}
	if cfg.TeamsFile != "" {
		resolver, err := teams.LoadResolver(cfg.TeamsFile)
		if err != nil {
			return nil, err
		}
		opts.Teams = resolver
	}
	if cfg.WorkItemsFile != "" {
		opts.WorkItems = teams.FileSource{Path: cfg.WorkItemsFile}
	}
	return metrics.NewDailyJob(backend, opts, log), nil
}

// RunDaily computes and writes the derived metrics of cfg.BackfillDays days ending at cfg.Day.
func RunDaily(ctx context.Context, cfg *contract.Config, fs contract.FactStore, log *zap.Logger) (schema.DailyJobSummary, error) {
	job, err := newDailyJob(cfg, fs, log)
	if err != nil {
		return schema.DailyJobSummary{}, err
	}
	return job.Run(ctx, cfg.Day, cfg.BackfillDays, cfg.RepoID)
}

// FileHotspots ranks the files of repoID over cfg.HotspotWindow days ending at
// cfg.Day, keeping the top cfg.ResultLimit.
func FileHotspots(ctx context.Context, cfg *contract.Config, fs contract.FactStore, repoID uuid.UUID, log *zap.Logger) ([]schema.FileMetricsRecord, error) {
	job, err := newDailyJob(cfg, fs, log)
	if err != nil {
		return nil, err
	}
	records, err := job.Hotspots(ctx, repoID, cfg.Day, cfg.HotspotWindow)
	if err != nil {
		return nil, err
	}
	return algo.RankHotspots(records, cfg.ResultLimit), nil
}

// StoreStatus reports row counts and freshness of the fact tables of fs.
func StoreStatus(ctx context.Context, fs contract.FactStore) (schema.StoreStatus, error) {
	status, err := fs.Status(ctx)
	if err != nil {
		return schema.StoreStatus{}, fmt.Errorf("failed to probe %s store: %w", fs.Backend(), err)
	}
	return status, nil
}

// ResolveRepoID returns cfg.RepoID when set, else the id of the local repository at cfg.RepoPath.
func ResolveRepoID(cfg *contract.Config) (uuid.UUID, error) {
	if cfg.RepoID != nil {
		return *cfg.RepoID, nil
	}
	repo, err := gitclient.OpenRepository(cfg.RepoPath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("pass --repo-id or a repository path: %w", err)
	}
	id, err := gitclient.ResolveIdentity(repo, cfg.RepoPath, nil)
	if err != nil {
		return uuid.Nil, err
	}
	return id.ID, nil
}

// WithStore opens the configured store for the duration of fn.
func WithStore(ctx context.Context, cfg *contract.Config, log *zap.Logger, fn func(contract.FactStore) error) error {
	fs, err := OpenStore(ctx, cfg.DBConnect, log)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", contract.RedactConnection(cfg.DBConnect), err)
	}
	defer func() {
		if err := fs.Close(); err != nil {
			log.Warn("Failed to close store", zap.Error(err))
		}
	}()
	return fn(fs)
}

// ExecuteSyncLocal syncs a local repository and prints the summary.
// It serves as the main entry point for 'sync local'.
func ExecuteSyncLocal(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
	return WithStore(ctx, cfg, log, func(fs contract.FactStore) error {
		summary, err := SyncLocal(ctx, cfg, fs, log)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteLocalSummary(summary, cfg)
	})
}

// ExecuteSyncRemote returns the entry point for 'sync github' and 'sync gitlab'.
// A cancelled run still prints what was stored before returning the error.
func ExecuteSyncRemote(provider schema.Provider) ExecutorFunc {
	return func(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
		connector, err := NewConnector(cfg, provider, log)
		if err != nil {
			return err
		}
		return WithStore(ctx, cfg, log, func(fs contract.FactStore) error {
			summary, runErr := SyncRemote(ctx, cfg, connector, fs, log)
			if runErr != nil && len(summary.Results) == 0 {
				return runErr
			}
			if err := outwriter.NewOutWriter().WriteBatchSummary(summary, cfg); err != nil {
				return err
			}
			return runErr
		})
	}
}

// ExecuteMetricsDaily runs the daily metrics job and prints the summary.
func ExecuteMetricsDaily(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
	return WithStore(ctx, cfg, log, func(fs contract.FactStore) error {
		summary, err := RunDaily(ctx, cfg, fs, log)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteDailySummary(summary, cfg)
	})
}

// ExecuteHotspots ranks file hotspots and prints them.
func ExecuteHotspots(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
	start := time.Now()
	repoID, err := ResolveRepoID(cfg)
	if err != nil {
		return err
	}
	return WithStore(ctx, cfg, log, func(fs contract.FactStore) error {
		records, err := FileHotspots(ctx, cfg, fs, repoID, log)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteHotspots(records, cfg, time.Since(start))
	})
}

// ExecuteStoreStatus prints row counts and freshness of the fact tables.
func ExecuteStoreStatus(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
	return WithStore(ctx, cfg, log, func(fs contract.FactStore) error {
		status, err := StoreStatus(ctx, fs)
		if err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteStoreStatus(status, cfg)
	})
}

// ExecuteStoreMigrate returns the entry point for 'store migrate'. A negative
// target migrates to the latest version.
func ExecuteStoreMigrate(targetVersion int) ExecutorFunc {
	return func(ctx context.Context, cfg *contract.Config, log *zap.Logger) error {
		result, err := store.Migrate(ctx, cfg.DBConnect, targetVersion, log)
		if err != nil {
			return err
		}
		if !result.Changed {
			log.Info("Schema already at target version", zap.Uint("version", result.To))
			return nil
		}
		log.Info("Migrated schema",
			zap.String("backend", string(result.Backend)),
			zap.Uint("from", result.From),
			zap.Uint("to", result.To))
		return nil
	}
}
