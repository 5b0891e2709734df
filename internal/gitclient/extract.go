package gitclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// absentMode is recorded when a side of a change has no file.
const absentMode = "000000"

// Extractor syncs one local repository into a fact store.
type Extractor struct {
	cfg     *contract.Config
	store   contract.FactStore
	log     *zap.Logger
	repo    *git.Repository
	handles *handlePool
	sem     *semaphore.Weighted
	now     func() time.Time
}

// NewExtractor opens the repository at cfg.RepoPath.
func NewExtractor(cfg *contract.Config, store contract.FactStore, log *zap.Logger) (*Extractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	repo, err := OpenRepository(cfg.RepoPath)
	if err != nil {
		return nil, err
	}
	workers := max(cfg.Workers, 1)
	return &Extractor{
		cfg:     cfg,
		store:   store,
		log:     log.With(zap.String("repo", cfg.RepoPath)),
		repo:    repo,
		handles: newHandlePool(cfg.RepoPath, workers),
		sem:     semaphore.NewWeighted(int64(workers)),
		now:     time.Now,
	}, nil
}

type fileEntry struct {
	path string
	mode filemode.FileMode
	hash plumbing.Hash
}

// Run inserts the repository record, then runs the commit, commit-stat and
// file/blame passes concurrently. Per-item failures are counted in the summary.
func (e *Extractor) Run(ctx context.Context) (schema.LocalSummary, error) {
	started := e.now()

	id, err := ResolveIdentity(e.repo, e.cfg.RepoPath, e.cfg.RepoID)
	if err != nil {
		return schema.LocalSummary{}, err
	}
	summary := schema.LocalSummary{RepoID: id.ID.String(), RepoPath: id.Path, Ref: id.Ref}
	e.log.Info("Starting local sync", zap.String("repo_id", summary.RepoID), zap.String("ref", id.Ref))

	settings := map[string]any{"source": string(schema.LocalProvider)}
	if id.RemoteURL != "" {
		settings["remote_url"] = id.RemoteURL
	}
	if err := e.store.InsertRepo(ctx, schema.Repo{
		ID:        id.ID,
		Repo:      id.Path,
		Ref:       id.Ref,
		Settings:  settings,
		Tags:      []string{string(schema.LocalProvider)},
		CreatedAt: started.UTC(),
	}); err != nil {
		return summary, fmt.Errorf("failed to insert repository: %w", err)
	}

	// Both listings use the primary handle before any pass starts.
	hashes, err := e.listCommits(id.Head)
	if err != nil {
		return summary, err
	}
	files, err := e.listFiles(id.Head)
	if err != nil {
		return summary, err
	}
	e.log.Debug("Collected work", zap.Int("commits", len(hashes)), zap.Int("files", len(files)))

	// Each pass owns the summary fields it counts; unreadable commits are merged afterwards.
	synced := started.UTC()
	var unreadable int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.commitPass(gctx, id, hashes, synced, &summary.Commits, &unreadable) })
	g.Go(func() error { return e.commitStatsPass(gctx, id, hashes, synced, &summary) })
	g.Go(func() error { return e.filesPass(gctx, id, files, synced, &summary) })
	err = g.Wait()
	summary.FailedCommits += unreadable

	summary.Duration = e.now().Sub(started)
	if err != nil {
		return summary, err
	}
	e.log.Info("Local sync finished",
		zap.Int("commits", summary.Commits),
		zap.Int("commit_stats", summary.CommitStats),
		zap.Int("files", summary.Files),
		zap.Int("blame_lines", summary.BlameLines),
		zap.Int("failed_commits", summary.FailedCommits),
		zap.Int("failed_files", summary.FailedFiles),
		zap.Int("failed_blame", summary.FailedBlame),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// listCommits walks the log from head, newest first, honoring since and max-commits.
func (e *Extractor) listCommits(head plumbing.Hash) ([]plumbing.Hash, error) {
	iter, err := e.repo.Log(&git.LogOptions{From: head, Since: e.cfg.Since})
	if err != nil {
		return nil, fmt.Errorf("failed to read commit log: %w", err)
	}
	defer iter.Close()

	var hashes []plumbing.Hash
	err = iter.ForEach(func(c *object.Commit) error {
		if e.cfg.MaxCommits > 0 && len(hashes) >= e.cfg.MaxCommits {
			return storer.ErrStop
		}
		hashes = append(hashes, c.Hash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk commit log: %w", err)
	}
	return hashes, nil
}

// listFiles returns the non-skippable blobs of the head tree.
func (e *Extractor) listFiles(head plumbing.Hash) ([]fileEntry, error) {
	commit, err := e.repo.CommitObject(head)
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD tree: %w", err)
	}

	var files []fileEntry
	err = tree.Files().ForEach(func(f *object.File) error {
		if contract.IsSkippable(f.Name) {
			return nil
		}
		files = append(files, fileEntry{path: f.Name, mode: f.Mode, hash: f.Hash})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list HEAD files: %w", err)
	}
	return files, nil
}

func (e *Extractor) commitPass(ctx context.Context, id Identity, hashes []plumbing.Hash, synced time.Time, inserted, failed *int) error {
	batch := make([]schema.GitCommit, 0, e.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.InsertGitCommitData(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert commits: %w", err)
		}
		*inserted += len(batch)
		e.log.Debug("Inserted commits", zap.Int("count", len(batch)), zap.Int("total", *inserted))
		batch = batch[:0]
		return nil
	}

	for _, hash := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := e.repo.CommitObject(hash)
		if err != nil {
			e.log.Warn("Skipping unreadable commit", zap.String("commit", hash.String()), zap.Error(err))
			*failed++
			continue
		}
		batch = append(batch, toGitCommit(id, c, synced))
		if len(batch) >= e.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func toGitCommit(id Identity, c *object.Commit, synced time.Time) schema.GitCommit {
	return schema.GitCommit{
		RepoID:         id.ID,
		Hash:           c.Hash.String(),
		Message:        c.Message,
		AuthorName:     c.Author.Name,
		AuthorEmail:    c.Author.Email,
		AuthorWhen:     c.Author.When.UTC(),
		CommitterName:  c.Committer.Name,
		CommitterEmail: c.Committer.Email,
		CommitterWhen:  c.Committer.When.UTC(),
		Parents:        c.NumParents(),
		LastSynced:     synced,
	}
}

func (e *Extractor) commitStatsPass(ctx context.Context, id Identity, hashes []plumbing.Hash, synced time.Time, summary *schema.LocalSummary) error {
	var batch []schema.GitCommitStat
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.InsertGitCommitStats(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert commit stats: %w", err)
		}
		summary.CommitStats += len(batch)
		batch = batch[:0]
		return nil
	}

	task := func(ctx context.Context, repo *git.Repository, hash plumbing.Hash) ([]schema.GitCommitStat, error) {
		return commitStats(ctx, repo, id, hash, e.cfg.FastStats, synced)
	}
	collect := func(hash plumbing.Hash, stats []schema.GitCommitStat, err error) error {
		if err != nil {
			e.log.Warn("Failed to diff commit", zap.String("commit", hash.String()), zap.Error(err))
			summary.FailedCommits++
			return nil
		}
		batch = append(batch, stats...)
		if len(batch) >= e.cfg.BatchSize {
			return flush()
		}
		return nil
	}

	if err := forEachChunk(ctx, e.sem, e.handles, hashes, 2*e.cfg.BatchSize, task, collect); err != nil {
		return err
	}
	return flush()
}

// commitStats diffs a commit against its first parent, or against the empty tree for a root commit.
func commitStats(ctx context.Context, repo *git.Repository, id Identity, hash plumbing.Hash, fast bool, synced time.Time) ([]schema.GitCommitStat, error) {
	c, err := repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	parentTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("failed to load first parent: %w", err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeContext(ctx, parentTree, tree)
	if err != nil {
		return nil, err
	}

	stats := make([]schema.GitCommitStat, 0, len(changes))
	for _, change := range changes {
		path := change.To.Name
		if path == "" {
			path = change.From.Name
		}
		if path == "" || contract.IsSkippable(path) {
			continue
		}
		stat := schema.GitCommitStat{
			RepoID:      id.ID,
			CommitHash:  c.Hash.String(),
			FilePath:    path,
			OldFileMode: formatMode(change.From.TreeEntry.Mode),
			NewFileMode: formatMode(change.To.TreeEntry.Mode),
			LastSynced:  synced,
		}
		if !fast {
			patch, err := change.PatchContext(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to build patch for %s: %w", path, err)
			}
			for _, fs := range patch.Stats() {
				stat.Additions += fs.Addition
				stat.Deletions += fs.Deletion
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// formatMode renders a git file mode as six octal digits.
func formatMode(m filemode.FileMode) string {
	if m == filemode.Empty {
		return absentMode
	}
	return fmt.Sprintf("%06o", uint32(m))
}

type fileResult struct {
	file  schema.GitFile
	blame []schema.GitBlame
	// blameErr is kept apart so that a failed blame still records the file.
	blameErr error
}

func (e *Extractor) filesPass(ctx context.Context, id Identity, files []fileEntry, synced time.Time, summary *schema.LocalSummary) error {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	blameSet := make(map[string]struct{})
	for _, p := range SelectBlameFiles(paths, e.cfg.Blame, e.cfg.BlameLimit) {
		blameSet[p] = struct{}{}
	}
	e.log.Info("Processing files", zap.Int("files", len(files)), zap.Int("blame", len(blameSet)))

	var fileBatch []schema.GitFile
	var blameBatch []schema.GitBlame
	flushFiles := func() error {
		if len(fileBatch) == 0 {
			return nil
		}
		if err := e.store.InsertGitFileData(ctx, fileBatch); err != nil {
			return fmt.Errorf("failed to insert files: %w", err)
		}
		summary.Files += len(fileBatch)
		fileBatch = fileBatch[:0]
		return nil
	}
	flushBlame := func() error {
		if len(blameBatch) == 0 {
			return nil
		}
		if err := e.store.InsertBlameData(ctx, blameBatch); err != nil {
			return fmt.Errorf("failed to insert blame: %w", err)
		}
		summary.BlameLines += len(blameBatch)
		blameBatch = blameBatch[:0]
		return nil
	}

	task := func(ctx context.Context, repo *git.Repository, f fileEntry) (fileResult, error) {
		file, err := e.snapshotFile(repo, id, f, synced)
		if err != nil {
			return fileResult{}, err
		}
		res := fileResult{file: file}
		if _, ok := blameSet[f.path]; ok {
			res.blame, res.blameErr = blameFile(ctx, repo, id.ID, id.Head, f.path)
			for i := range res.blame {
				res.blame[i].LastSynced = synced
			}
		}
		return res, nil
	}
	collect := func(f fileEntry, res fileResult, err error) error {
		if err != nil {
			e.log.Warn("Failed to read file", zap.String("path", f.path), zap.Error(err))
			summary.FailedFiles++
			return nil
		}
		fileBatch = append(fileBatch, res.file)
		if res.blameErr != nil {
			e.log.Warn("Failed to blame file", zap.String("path", f.path), zap.Error(res.blameErr))
			summary.FailedBlame++
		}
		blameBatch = append(blameBatch, res.blame...)
		if len(fileBatch) >= e.cfg.BatchSize {
			if err := flushFiles(); err != nil {
				return err
			}
		}
		if len(blameBatch) >= e.cfg.BatchSize {
			return flushBlame()
		}
		return nil
	}

	if err := forEachChunk(ctx, e.sem, e.handles, files, 2*e.cfg.BatchSize, task, collect); err != nil {
		return err
	}
	if err := flushFiles(); err != nil {
		return err
	}
	return flushBlame()
}

// snapshotFile builds the file record. Contents are kept for text blobs within the content limit.
func (e *Extractor) snapshotFile(repo *git.Repository, id Identity, f fileEntry, synced time.Time) (schema.GitFile, error) {
	file := schema.GitFile{
		RepoID:     id.ID,
		Path:       f.path,
		Executable: f.mode == filemode.Executable,
		LastSynced: synced,
	}
	if e.cfg.ContentLimit <= 0 {
		return file, nil
	}

	blob, err := repo.BlobObject(f.hash)
	if err != nil {
		return file, fmt.Errorf("failed to load blob: %w", err)
	}
	if blob.Size > e.cfg.ContentLimit {
		return file, nil
	}
	obj := object.NewFile(f.path, f.mode, blob)
	binary, err := obj.IsBinary()
	if err != nil && !errors.Is(err, io.EOF) {
		return file, fmt.Errorf("failed to inspect blob: %w", err)
	}
	if binary {
		return file, nil
	}
	contents, err := obj.Contents()
	if err != nil {
		return file, fmt.Errorf("failed to read blob: %w", err)
	}
	file.Contents = &contents
	return file, nil
}
