package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GitLabConfig holds connector settings.
type GitLabConfig struct {
	Token       string
	BaseURL     string // instance root, e.g. https://gitlab.com
	HTTPTimeout time.Duration
	Retry       RetryPolicy
	PerPage     int
}

// GitLabConnector reads projects, commits, merge requests and blame from the GitLab v4 REST API.
type GitLabConnector struct {
	client  *gitlab.Client
	retry   RetryPolicy
	perPage int
	log     *zap.Logger
	now     func() time.Time
}

var _ contract.Connector = &GitLabConnector{} // Compile-time check

// NewGitLabConnector creates a connector for the instance at cfg.BaseURL.
func NewGitLabConnector(cfg GitLabConfig, log *zap.Logger) (*GitLabConnector, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = contract.DefaultGitLabURL
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid GitLab url %q", cfg.BaseURL)
	}

	// Retries and pacing belong to withRetry and the shared gate, not the client.
	client, err := gitlab.NewClient(cfg.Token,
		gitlab.WithBaseURL(base.String()),
		gitlab.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		gitlab.WithCustomRetryMax(0),
		gitlab.WithCustomLimiter(rate.NewLimiter(rate.Inf, 0)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client for %q: %w", cfg.BaseURL, err)
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = GitLabRetryPolicy()
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GitLabConnector{
		client:  client,
		retry:   cfg.Retry,
		perPage: cfg.PerPage,
		log:     log.With(zap.String("provider", string(schema.GitLabProvider))),
		now:     time.Now,
	}, nil
}

// Provider returns the provider name.
func (c *GitLabConnector) Provider() schema.Provider { return schema.GitLabProvider }

// ListOrganizations lists groups visible to the token.
func (c *GitLabConnector) ListOrganizations(ctx context.Context, max int) ([]schema.Organization, error) {
	groups, err := collectGitLabPages(ctx, c, "groups", max, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Group, *gitlab.Response, error) {
		return c.client.Groups.ListGroups(&gitlab.ListGroupsOptions{ListOptions: list}, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := make([]schema.Organization, 0, len(groups))
	for _, g := range groups {
		out = append(out, schema.Organization{ID: int64(g.ID), Name: g.FullPath, Description: g.Description, URL: g.WebURL})
	}
	c.log.Info("Listed groups", zap.Int("count", len(out)))
	return out, nil
}

// ListRepositories lists projects of a group (with subgroups), a user, a search query,
// or the projects the token is a member of.
func (c *GitLabConnector) ListRepositories(ctx context.Context, filter schema.RepoFilter, max int) ([]schema.Repository, error) {
	var out []schema.Repository
	err := c.walkProjects(ctx, filter, func(page []schema.Repository) bool {
		for _, r := range page {
			if max > 0 && len(out) >= max {
				return false
			}
			out = append(out, r)
		}
		return max <= 0 || len(out) < max
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("Listed projects", zap.Int("count", len(out)))
	return out, nil
}

// ListRepositoriesWithPattern keeps projects whose full path matches pattern. Pages
// are filtered as they arrive and paging stops once max matches are found. A literal
// pattern owner is tried as a group first and as a user namespace when no such
// group exists.
func (c *GitLabConnector) ListRepositoriesWithPattern(ctx context.Context, filter schema.RepoFilter, pattern string, max int) ([]schema.Repository, error) {
	if pattern == "" {
		return c.ListRepositories(ctx, filter, max)
	}
	m, err := newRepoMatcher(pattern, max)
	if err != nil {
		return nil, err
	}

	var owner string
	derived := false
	if filter.Org == "" && filter.User == "" && filter.Search == "" {
		if owner, derived = PatternOwner(pattern); derived {
			filter.Org = owner
		}
	}
	err = c.walkProjects(ctx, filter, m.add)
	var nf *NotFoundError
	if derived && errors.As(err, &nf) {
		c.log.Debug("Pattern owner is not a group, listing user projects", zap.String("owner", owner))
		err = c.walkProjects(ctx, schema.RepoFilter{User: owner}, m.add)
	}
	if err != nil {
		return nil, err
	}
	c.log.Info("Matched projects", zap.String("pattern", pattern), zap.Int("count", len(m.matched)))
	return m.matched, nil
}

type gitlabProjectLister func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error)

func (c *GitLabConnector) projectLister(filter schema.RepoFilter) (string, gitlabProjectLister) {
	var search *string
	if filter.Search != "" {
		search = gitlab.Ptr(filter.Search)
	}
	switch {
	case filter.Org != "":
		return "groups/" + filter.Org, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error) {
			return c.client.Groups.ListGroupProjects(filter.Org, &gitlab.ListGroupProjectsOptions{
				ListOptions:      list,
				IncludeSubGroups: gitlab.Ptr(true),
				Search:           search,
			}, opts...)
		}
	case filter.User != "":
		return "users/" + filter.User, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error) {
			return c.client.Projects.ListUserProjects(filter.User, &gitlab.ListProjectsOptions{ListOptions: list, Search: search}, opts...)
		}
	case filter.Search != "":
		return "projects", func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error) {
			return c.client.Projects.ListProjects(&gitlab.ListProjectsOptions{ListOptions: list, Search: search}, opts...)
		}
	default:
		return "projects", func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Project, *gitlab.Response, error) {
			return c.client.Projects.ListProjects(&gitlab.ListProjectsOptions{ListOptions: list, Membership: gitlab.Ptr(true)}, opts...)
		}
	}
}

// walkProjects hands each page to fn until fn declines or pages run out.
func (c *GitLabConnector) walkProjects(ctx context.Context, filter schema.RepoFilter, fn func([]schema.Repository) bool) error {
	resource, list := c.projectLister(filter)
	return walkGitLabPages(ctx, c, nil, resource, list, func(projects []*gitlab.Project) (bool, error) {
		batch := make([]schema.Repository, 0, len(projects))
		for _, p := range projects {
			batch = append(batch, convertGitLabProject(p))
		}
		return fn(batch), nil
	})
}

// GetContributors lists contributors of a project.
func (c *GitLabConnector) GetContributors(ctx context.Context, fullName string, max int) ([]schema.Author, error) {
	pid := projectID(fullName)
	contributors, err := collectGitLabPages(ctx, c, fullName, max, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Contributor, *gitlab.Response, error) {
		return c.client.Repositories.Contributors(pid, &gitlab.ListContributorsOptions{ListOptions: list}, opts...)
	})
	if err != nil {
		return nil, err
	}
	out := make([]schema.Author, 0, len(contributors))
	for _, ct := range contributors {
		out = append(out, schema.Author{Username: ct.Email, Name: ct.Name, Email: ct.Email, Contributions: ct.Commits})
	}
	return out, nil
}

// GetCommitStats returns the delta of one commit. Per-file counts come from the diff.
func (c *GitLabConnector) GetCommitStats(ctx context.Context, fullName, sha string) (schema.CommitStats, error) {
	pid := projectID(fullName)
	handle := c.handleError(fullName + "@" + sha)
	commit, err := withRetry(ctx, c.retry, c.log, "get commit", func(ctx context.Context) (*gitlab.Commit, error) {
		cm, _, err := c.client.Commits.GetCommit(pid, sha, &gitlab.GetCommitOptions{Stats: gitlab.Ptr(true)}, gitlab.WithContext(ctx))
		return cm, handle(err)
	})
	if err != nil {
		return schema.CommitStats{}, err
	}
	diffs, err := collectGitLabPages(ctx, c, fullName+"@"+sha, 0, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Diff, *gitlab.Response, error) {
		return c.client.Commits.GetCommitDiff(pid, sha, &gitlab.GetCommitDiffOptions{ListOptions: list}, opts...)
	})
	if err != nil {
		return schema.CommitStats{}, err
	}

	stats := schema.CommitStats{SHA: commit.ID}
	if commit.Stats != nil {
		stats.Additions = commit.Stats.Additions
		stats.Deletions = commit.Stats.Deletions
	}
	for _, d := range diffs {
		adds, dels := countDiffLines(d.Diff)
		status := "modified"
		switch {
		case d.NewFile:
			status = "added"
		case d.DeletedFile:
			status = "removed"
		case d.RenamedFile:
			status = "renamed"
		}
		stats.Files = append(stats.Files, schema.FileChange{Path: d.NewPath, Additions: adds, Deletions: dels, Status: status})
	}
	return stats, nil
}

// GetRepoStats summarises up to maxCommits recent commits.
func (c *GitLabConnector) GetRepoStats(ctx context.Context, fullName string, maxCommits int) (schema.RepoStats, error) {
	pid := projectID(fullName)
	handle := c.handleError(fullName)
	project, err := withRetry(ctx, c.retry, c.log, "get project", func(ctx context.Context) (*gitlab.Project, error) {
		p, _, err := c.client.Projects.GetProject(pid, &gitlab.GetProjectOptions{}, gitlab.WithContext(ctx))
		return p, handle(err)
	})
	if err != nil {
		return schema.RepoStats{}, err
	}
	commits, err := c.listCommits(ctx, fullName, nil, maxCommits, true)
	if err != nil {
		return schema.RepoStats{}, err
	}

	stats := schema.RepoStats{}
	seen := map[string]bool{}
	for _, cm := range commits {
		stats.TotalCommits++
		if cm.Stats != nil {
			stats.Additions += cm.Stats.Additions
			stats.Deletions += cm.Stats.Deletions
		}
		when := timeOf(cm.CommittedDate)
		if stats.LastCommitDate.IsZero() || when.After(stats.LastCommitDate) {
			stats.LastCommitDate = when
		}
		if stats.FirstCommitDate.IsZero() || when.Before(stats.FirstCommitDate) {
			stats.FirstCommitDate = when
		}
		key := strings.ToLower(strings.TrimSpace(cm.AuthorEmail))
		if key != "" && !seen[key] {
			seen[key] = true
			stats.Authors = append(stats.Authors, schema.Author{Username: cm.AuthorEmail, Name: cm.AuthorName, Email: cm.AuthorEmail})
		}
	}
	stats.CommitsPerWeek = commitsPerWeek(stats.TotalCommits, timeOf(project.CreatedAt), c.now())
	return stats, nil
}

// ListCommits lists commits of the default branch, newest first.
func (c *GitLabConnector) ListCommits(ctx context.Context, fullName string, since *time.Time, max int) ([]schema.RemoteCommit, error) {
	commits, err := c.listCommits(ctx, fullName, since, max, false)
	if err != nil {
		return nil, err
	}
	out := make([]schema.RemoteCommit, 0, len(commits))
	for _, cm := range commits {
		out = append(out, schema.RemoteCommit{
			SHA:            cm.ID,
			Message:        cm.Message,
			AuthorName:     cm.AuthorName,
			AuthorEmail:    cm.AuthorEmail,
			AuthorWhen:     timeOf(cm.AuthoredDate),
			CommitterName:  cm.CommitterName,
			CommitterEmail: cm.CommitterEmail,
			CommitterWhen:  timeOf(cm.CommittedDate),
			Parents:        len(cm.ParentIDs),
		})
	}
	return out, nil
}

func (c *GitLabConnector) listCommits(ctx context.Context, fullName string, since *time.Time, max int, withStats bool) ([]*gitlab.Commit, error) {
	pid := projectID(fullName)
	opt := &gitlab.ListCommitsOptions{}
	if since != nil {
		opt.Since = gitlab.Ptr(since.UTC())
	}
	if withStats {
		opt.WithStats = gitlab.Ptr(true)
	}
	return collectGitLabPages(ctx, c, fullName, max, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.Commit, *gitlab.Response, error) {
		opt.ListOptions = list
		return c.client.Commits.ListCommits(pid, opt, opts...)
	})
}

// GetPullRequests lists merge requests in the given state.
func (c *GitLabConnector) GetPullRequests(ctx context.Context, fullName, state string, max int) ([]schema.PullRequest, error) {
	var out []schema.PullRequest
	err := c.WalkPullRequests(ctx, fullName, state, max, nil, func(page []schema.PullRequest) error {
		out = append(out, page...)
		return nil
	})
	return out, err
}

// WalkPullRequests pages through merge requests, pacing through gate when set.
func (c *GitLabConnector) WalkPullRequests(ctx context.Context, fullName, state string, max int, gate contract.Gate, fn func([]schema.PullRequest) error) error {
	pid := projectID(fullName)
	mrState := gitLabMRState(state)
	list := func(lo gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]schema.PullRequest, *gitlab.Response, error) {
		mrs, resp, err := c.client.MergeRequests.ListProjectMergeRequests(pid, &gitlab.ListProjectMergeRequestsOptions{
			ListOptions: lo,
			State:       gitlab.Ptr(mrState),
		}, opts...)
		if err != nil {
			return nil, resp, err
		}
		out := make([]schema.PullRequest, 0, len(mrs))
		for _, mr := range mrs {
			pr := schema.PullRequest{
				Number:       mr.IID,
				Title:        mr.Title,
				State:        mr.State,
				CreatedAt:    timeOf(mr.CreatedAt),
				MergedAt:     mr.MergedAt,
				ClosedAt:     mr.ClosedAt,
				HeadBranch:   mr.SourceBranch,
				BaseBranch:   mr.TargetBranch,
				CommentCount: mr.UserNotesCount,
			}
			if pr.State == "opened" {
				pr.State = "open"
			}
			if mr.Author != nil {
				pr.AuthorLogin = mr.Author.Username
				pr.AuthorName = mr.Author.Name
			}
			out = append(out, pr)
		}
		return out, resp, nil
	}

	seen := 0
	return walkGitLabPages(ctx, c, gate, fullName, list, func(prs []schema.PullRequest) (bool, error) {
		if max > 0 && len(prs) > max-seen {
			prs = prs[:max-seen]
		}
		seen += len(prs)
		if len(prs) > 0 {
			if err := fn(prs); err != nil {
				return false, err
			}
		}
		return max <= 0 || seen < max, nil
	})
}

// GetFileBlame returns blame ranges of a file. GitLab reports consecutive groups of
// lines per commit, so line numbers are accumulated from group sizes.
func (c *GitLabConnector) GetFileBlame(ctx context.Context, fullName, path, ref string) (schema.FileBlame, error) {
	if ref == "" {
		ref = "HEAD"
	}
	pid := projectID(fullName)
	handle := c.handleError(fullName + ":" + path)
	entries, err := withRetry(ctx, c.retry, c.log, "get file blame", func(ctx context.Context) ([]*gitlab.FileBlameRange, error) {
		entries, _, err := c.client.RepositoryFiles.GetFileBlame(pid, path, &gitlab.GetFileBlameOptions{Ref: gitlab.Ptr(ref)}, gitlab.WithContext(ctx))
		return entries, handle(err)
	})
	if err != nil {
		return schema.FileBlame{}, err
	}

	now := c.now()
	fb := schema.FileBlame{Path: path, Ref: ref}
	line := 1
	for _, e := range entries {
		if len(e.Lines) == 0 {
			continue
		}
		var age int64
		if committed := timeOf(e.Commit.CommittedDate); !committed.IsZero() {
			age = int64(now.Sub(committed).Seconds())
		}
		fb.Ranges = append(fb.Ranges, schema.BlameRange{
			StartingLine: line,
			EndingLine:   line + len(e.Lines) - 1,
			CommitSHA:    e.Commit.ID,
			Author:       e.Commit.AuthorName,
			AuthorEmail:  e.Commit.AuthorEmail,
			AgeSeconds:   age,
		})
		line += len(e.Lines)
	}
	return fb, nil
}

// ListFiles lists blob paths of the tree at ref.
func (c *GitLabConnector) ListFiles(ctx context.Context, fullName, ref string) ([]string, error) {
	pid := projectID(fullName)
	opt := &gitlab.ListTreeOptions{Recursive: gitlab.Ptr(true)}
	if ref != "" {
		opt.Ref = gitlab.Ptr(ref)
	}
	entries, err := collectGitLabPages(ctx, c, fullName+"@"+ref, 0, func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]*gitlab.TreeNode, *gitlab.Response, error) {
		opt.ListOptions = list
		return c.client.Repositories.ListTree(pid, opt, opts...)
	})
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type == "blob" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

// handleError returns the error funnel for one resource.
func (c *GitLabConnector) handleError(resource string) func(error) error {
	return func(err error) error {
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var er *gitlab.ErrorResponse
		if errors.As(err, &er) && er.Response != nil {
			return classifyStatus(schema.GitLabProvider, er.Response.StatusCode, er.Response.Header, resource, er.Message)
		}
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return &APIError{Provider: schema.GitLabProvider, Message: "decode response: " + err.Error(), Err: err}
		}
		return &APIError{Provider: schema.GitLabProvider, Message: err.Error(), Transient: true, Err: err}
	}
}

// walkGitLabPages follows NextPage and hands every page to fn until fn declines.
// Each page is fetched through fetchPage, so a failure only repeats that page.
func walkGitLabPages[T any](ctx context.Context, c *GitLabConnector, gate contract.Gate, resource string,
	fetch func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]T, *gitlab.Response, error),
	fn func([]T) (bool, error),
) error {
	handle := c.handleError(resource)
	page := 1
	for {
		items, resp, err := fetchPage(ctx, gate, c.retry, c.log, func(ctx context.Context) ([]T, *gitlab.Response, error) {
			items, resp, err := fetch(gitlab.ListOptions{Page: page, PerPage: c.perPage}, gitlab.WithContext(ctx))
			return items, resp, handle(err)
		})
		if err != nil {
			return err
		}
		more, err := fn(items)
		if err != nil || !more || resp == nil || resp.NextPage == 0 {
			return err
		}
		if resp.NextPage <= page {
			return &PaginationError{Provider: schema.GitLabProvider, Page: page, Err: fmt.Errorf("next page %d does not advance", resp.NextPage)}
		}
		page = resp.NextPage
	}
}

// collectGitLabPages gathers up to max items (0 = all) across pages.
func collectGitLabPages[T any](ctx context.Context, c *GitLabConnector, resource string, max int,
	fetch func(list gitlab.ListOptions, opts ...gitlab.RequestOptionFunc) ([]T, *gitlab.Response, error),
) ([]T, error) {
	var out []T
	err := walkGitLabPages(ctx, c, nil, resource, fetch, func(items []T) (bool, error) {
		for _, it := range items {
			if max > 0 && len(out) >= max {
				return false, nil
			}
			out = append(out, it)
		}
		return max <= 0 || len(out) < max, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// projectID addresses a project by its full path; the client escapes it.
func projectID(fullName string) string {
	return strings.Trim(fullName, "/")
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func gitLabMRState(state string) string {
	switch strings.ToLower(state) {
	case "open", "opened":
		return "opened"
	case "closed":
		return "closed"
	case "merged":
		return "merged"
	default:
		return "all"
	}
}

// countDiffLines counts added and removed lines of a unified diff. "---" and "+++"
// are file headers only before the first hunk of a file; inside a hunk they are a
// removed "--" line and an added "++" line.
func countDiffLines(diff string) (adds, dels int) {
	inHunk := false
	for line := range strings.SplitSeq(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff "):
			inHunk = false
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk:
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}
	return adds, dels
}

func convertGitLabProject(p *gitlab.Project) schema.Repository {
	return schema.Repository{
		ID:            int64(p.ID),
		Name:          p.Name,
		FullName:      p.PathWithNamespace,
		DefaultBranch: p.DefaultBranch,
		Description:   p.Description,
		URL:           p.WebURL,
		Stars:         p.StarCount,
		Forks:         p.ForksCount,
		CreatedAt:     timeOf(p.CreatedAt),
		UpdatedAt:     timeOf(p.LastActivityAt),
	}
}
