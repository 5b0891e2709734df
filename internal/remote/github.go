package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"go.uber.org/zap"
)

// defaultPerPage is the page size requested from providers.
const defaultPerPage = 100

// maxPenaltiesPerPage bounds how often one page is retried under the shared gate.
const maxPenaltiesPerPage = 5

// GitHubConfig holds connector settings.
type GitHubConfig struct {
	Token       string
	BaseURL     string // GitHub Enterprise API URL, empty for github.com
	HTTPTimeout time.Duration
	Retry       RetryPolicy
	PerPage     int
}

// GitHubConnector reads repositories, commits, pull requests and blame from GitHub.
type GitHubConnector struct {
	client     *github.Client
	graphqlURL string
	retry      RetryPolicy
	perPage    int
	log        *zap.Logger
	now        func() time.Time
}

var _ contract.Connector = &GitHubConnector{} // Compile-time check

// NewGitHubConnector creates a connector. A token is optional but unauthenticated
// requests get a very small quota.
func NewGitHubConnector(cfg GitHubConfig, log *zap.Logger) (*GitHubConnector, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	graphqlURL := "https://api.github.com/graphql"
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base url %q: %w", cfg.BaseURL, err)
		}
		// Enterprise serves GraphQL at /api/graphql next to the /api/v3/ REST root.
		graphqlURL = strings.TrimSuffix(client.BaseURL.String(), "v3/") + "graphql"
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = GitHubRetryPolicy()
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GitHubConnector{
		client:     client,
		graphqlURL: graphqlURL,
		retry:      cfg.Retry,
		perPage:    cfg.PerPage,
		log:        log.With(zap.String("provider", string(schema.GitHubProvider))),
		now:        time.Now,
	}, nil
}

// Provider returns the provider name.
func (c *GitHubConnector) Provider() schema.Provider { return schema.GitHubProvider }

// ListOrganizations lists organizations of the authenticated user.
func (c *GitHubConnector) ListOrganizations(ctx context.Context, max int) ([]schema.Organization, error) {
	orgs, err := withRetry(ctx, c.retry, c.log, "list organizations", func(ctx context.Context) ([]*github.Organization, error) {
		return collectGitHubPages(ctx, max, func(page int) ([]*github.Organization, *github.Response, error) {
			return c.client.Organizations.List(ctx, "", &github.ListOptions{Page: page, PerPage: c.perPage})
		}, c.handleError("organizations"))
	})
	if err != nil {
		return nil, err
	}
	out := make([]schema.Organization, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, schema.Organization{
			ID:          o.GetID(),
			Name:        o.GetLogin(),
			Description: o.GetDescription(),
			URL:         o.GetHTMLURL(),
		})
	}
	c.log.Info("Listed organizations", zap.Int("count", len(out)))
	return out, nil
}

// ListRepositories lists repositories of an organization, a user, a search query,
// or the authenticated user when the filter is empty.
func (c *GitHubConnector) ListRepositories(ctx context.Context, filter schema.RepoFilter, max int) ([]schema.Repository, error) {
	var out []schema.Repository
	err := c.walkRepositories(ctx, filter, func(page []schema.Repository) bool {
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
	c.log.Info("Listed repositories", zap.Int("count", len(out)))
	return out, nil
}

// ListRepositoriesWithPattern keeps repositories whose full name matches pattern.
// Pages are filtered as they arrive and paging stops once max matches are found.
func (c *GitHubConnector) ListRepositoriesWithPattern(ctx context.Context, filter schema.RepoFilter, pattern string, max int) ([]schema.Repository, error) {
	if pattern == "" {
		return c.ListRepositories(ctx, filter, max)
	}
	m, err := newRepoMatcher(pattern, max)
	if err != nil {
		return nil, err
	}
	if err := c.walkRepositories(ctx, resolveFilter(filter, pattern), m.add); err != nil {
		return nil, err
	}
	c.log.Info("Matched repositories", zap.String("pattern", pattern), zap.Int("count", len(m.matched)))
	return m.matched, nil
}

type githubRepoLister func(ctx context.Context, list github.ListOptions) ([]*github.Repository, *github.Response, error)

func (c *GitHubConnector) repoLister(filter schema.RepoFilter) githubRepoLister {
	switch {
	case filter.Search != "":
		query := filter.Search
		if filter.Org != "" {
			query += " org:" + filter.Org
		} else if filter.User != "" {
			query += " user:" + filter.User
		}
		return func(ctx context.Context, list github.ListOptions) ([]*github.Repository, *github.Response, error) {
			res, resp, err := c.client.Search.Repositories(ctx, query, &github.SearchOptions{ListOptions: list})
			if err != nil {
				return nil, resp, err
			}
			return res.Repositories, resp, nil
		}
	case filter.Org != "":
		return func(ctx context.Context, list github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return c.client.Repositories.ListByOrg(ctx, filter.Org, &github.RepositoryListByOrgOptions{ListOptions: list})
		}
	case filter.User != "":
		return func(ctx context.Context, list github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return c.client.Repositories.ListByUser(ctx, filter.User, &github.RepositoryListByUserOptions{ListOptions: list})
		}
	default:
		return func(ctx context.Context, list github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return c.client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{ListOptions: list})
		}
	}
}

// walkRepositories hands each page to fn until fn declines or pages run out.
// Every page is retried on its own.
func (c *GitHubConnector) walkRepositories(ctx context.Context, filter schema.RepoFilter, fn func([]schema.Repository) bool) error {
	list := c.repoLister(filter)
	handle := c.handleError("repositories")
	page := 1
	for {
		repos, resp, err := fetchPage(ctx, nil, c.retry, c.log, func(ctx context.Context) ([]*github.Repository, *github.Response, error) {
			repos, resp, err := list(ctx, github.ListOptions{Page: page, PerPage: c.perPage})
			return repos, resp, handle(err)
		})
		if err != nil {
			return err
		}
		batch := make([]schema.Repository, 0, len(repos))
		for _, r := range repos {
			batch = append(batch, convertGitHubRepo(r))
		}
		if !fn(batch) || resp == nil || resp.NextPage == 0 {
			return nil
		}
		if resp.NextPage <= page {
			return &PaginationError{Provider: schema.GitHubProvider, Page: page, Err: fmt.Errorf("next page %d does not advance", resp.NextPage)}
		}
		page = resp.NextPage
	}
}

// GetContributors lists contributors of a repository.
func (c *GitHubConnector) GetContributors(ctx context.Context, fullName string, max int) ([]schema.Author, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	contributors, err := withRetry(ctx, c.retry, c.log, "get contributors", func(ctx context.Context) ([]*github.Contributor, error) {
		return collectGitHubPages(ctx, max, func(page int) ([]*github.Contributor, *github.Response, error) {
			return c.client.Repositories.ListContributors(ctx, owner, name, &github.ListContributorsOptions{
				ListOptions: github.ListOptions{Page: page, PerPage: c.perPage},
			})
		}, c.handleError(fullName))
	})
	if err != nil {
		return nil, err
	}
	out := make([]schema.Author, 0, len(contributors))
	for _, ct := range contributors {
		out = append(out, schema.Author{
			ID:            ct.GetID(),
			Username:      ct.GetLogin(),
			Email:         ct.GetEmail(),
			Name:          ct.GetName(),
			URL:           ct.GetHTMLURL(),
			Contributions: ct.GetContributions(),
		})
	}
	return out, nil
}

// GetCommitStats returns the delta of one commit with its per-file breakdown.
func (c *GitHubConnector) GetCommitStats(ctx context.Context, fullName, sha string) (schema.CommitStats, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return schema.CommitStats{}, err
	}
	rc, err := withRetry(ctx, c.retry, c.log, "get commit stats", func(ctx context.Context) (*github.RepositoryCommit, error) {
		rc, _, err := c.client.Repositories.GetCommit(ctx, owner, name, sha, &github.ListOptions{PerPage: c.perPage})
		return rc, c.handleError(fullName + "@" + sha)(err)
	})
	if err != nil {
		return schema.CommitStats{}, err
	}
	stats := schema.CommitStats{
		SHA:       rc.GetSHA(),
		Additions: rc.GetStats().GetAdditions(),
		Deletions: rc.GetStats().GetDeletions(),
	}
	for _, f := range rc.Files {
		stats.Files = append(stats.Files, schema.FileChange{
			Path:      f.GetFilename(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Status:    f.GetStatus(),
		})
	}
	return stats, nil
}

// GetRepoStats summarises up to maxCommits recent commits.
func (c *GitHubConnector) GetRepoStats(ctx context.Context, fullName string, maxCommits int) (schema.RepoStats, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return schema.RepoStats{}, err
	}
	repo, err := withRetry(ctx, c.retry, c.log, "get repository", func(ctx context.Context) (*github.Repository, error) {
		r, _, err := c.client.Repositories.Get(ctx, owner, name)
		return r, c.handleError(fullName)(err)
	})
	if err != nil {
		return schema.RepoStats{}, err
	}
	commits, err := c.listRepositoryCommits(ctx, fullName, nil, maxCommits)
	if err != nil {
		return schema.RepoStats{}, err
	}

	stats := schema.RepoStats{}
	seenAuthors := map[string]bool{}
	for _, rc := range commits {
		detail, err := c.GetCommitStats(ctx, fullName, rc.GetSHA())
		if err != nil {
			return schema.RepoStats{}, err
		}
		stats.TotalCommits++
		stats.Additions += detail.Additions
		stats.Deletions += detail.Deletions

		when := rc.GetCommit().GetCommitter().GetDate().Time
		if stats.LastCommitDate.IsZero() || when.After(stats.LastCommitDate) {
			stats.LastCommitDate = when
		}
		if stats.FirstCommitDate.IsZero() || when.Before(stats.FirstCommitDate) {
			stats.FirstCommitDate = when
		}

		key := rc.GetAuthor().GetLogin()
		if key == "" {
			key = rc.GetCommit().GetAuthor().GetEmail()
		}
		if key != "" && !seenAuthors[key] {
			seenAuthors[key] = true
			stats.Authors = append(stats.Authors, schema.Author{
				ID:       rc.GetAuthor().GetID(),
				Username: rc.GetAuthor().GetLogin(),
				Name:     rc.GetCommit().GetAuthor().GetName(),
				Email:    rc.GetCommit().GetAuthor().GetEmail(),
				URL:      rc.GetAuthor().GetHTMLURL(),
			})
		}
	}
	stats.CommitsPerWeek = commitsPerWeek(stats.TotalCommits, repo.GetCreatedAt().Time, c.now())
	return stats, nil
}

// ListCommits lists commits of the default branch, newest first.
func (c *GitHubConnector) ListCommits(ctx context.Context, fullName string, since *time.Time, max int) ([]schema.RemoteCommit, error) {
	commits, err := c.listRepositoryCommits(ctx, fullName, since, max)
	if err != nil {
		return nil, err
	}
	out := make([]schema.RemoteCommit, 0, len(commits))
	for _, rc := range commits {
		out = append(out, schema.RemoteCommit{
			SHA:            rc.GetSHA(),
			Message:        rc.GetCommit().GetMessage(),
			AuthorName:     rc.GetCommit().GetAuthor().GetName(),
			AuthorEmail:    rc.GetCommit().GetAuthor().GetEmail(),
			AuthorWhen:     rc.GetCommit().GetAuthor().GetDate().Time,
			CommitterName:  rc.GetCommit().GetCommitter().GetName(),
			CommitterEmail: rc.GetCommit().GetCommitter().GetEmail(),
			CommitterWhen:  rc.GetCommit().GetCommitter().GetDate().Time,
			Parents:        len(rc.Parents),
		})
	}
	return out, nil
}

func (c *GitHubConnector) listRepositoryCommits(ctx context.Context, fullName string, since *time.Time, max int) ([]*github.RepositoryCommit, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	return withRetry(ctx, c.retry, c.log, "list commits", func(ctx context.Context) ([]*github.RepositoryCommit, error) {
		return collectGitHubPages(ctx, max, func(page int) ([]*github.RepositoryCommit, *github.Response, error) {
			opts := &github.CommitsListOptions{ListOptions: github.ListOptions{Page: page, PerPage: c.perPage}}
			if since != nil {
				opts.Since = *since
			}
			return c.client.Repositories.ListCommits(ctx, owner, name, opts)
		}, c.handleError(fullName))
	})
}

// GetPullRequests lists pull requests in the given state ("open", "closed" or "all").
func (c *GitHubConnector) GetPullRequests(ctx context.Context, fullName, state string, max int) ([]schema.PullRequest, error) {
	var out []schema.PullRequest
	err := c.WalkPullRequests(ctx, fullName, state, max, nil, func(page []schema.PullRequest) error {
		out = append(out, page...)
		return nil
	})
	return out, err
}

// WalkPullRequests pages through pull requests. When gate is set, every page waits on
// it, rate-limit responses penalize it and successful pages reset it. Reviews are
// listed per pull request under the same gate.
func (c *GitHubConnector) WalkPullRequests(ctx context.Context, fullName, state string, max int, gate contract.Gate, fn func([]schema.PullRequest) error) error {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	if state == "" {
		state = "all"
	}
	handle := c.handleError(fullName)
	seen := 0
	page := 1
	for {
		prs, resp, err := fetchPage(ctx, gate, c.retry, c.log, func(ctx context.Context) ([]*github.PullRequest, *github.Response, error) {
			prs, resp, err := c.client.PullRequests.List(ctx, owner, name, &github.PullRequestListOptions{
				State:       state,
				ListOptions: github.ListOptions{Page: page, PerPage: c.perPage},
			})
			return prs, resp, handle(err)
		})
		if err != nil {
			return err
		}

		batch := make([]schema.PullRequest, 0, len(prs))
		for _, pr := range prs {
			if max > 0 && seen >= max {
				break
			}
			out := convertGitHubPR(pr)
			out.ReviewCount, out.FirstReviewAt, err = c.reviewSummary(ctx, owner, name, pr.GetNumber(), gate, handle)
			if err != nil {
				return err
			}
			batch = append(batch, out)
			seen++
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}
		if resp == nil || resp.NextPage == 0 || (max > 0 && seen >= max) {
			return nil
		}
		page = resp.NextPage
	}
}

// reviewSummary counts the submitted reviews of one pull request and finds the
// earliest. The pull request listing carries neither.
func (c *GitHubConnector) reviewSummary(ctx context.Context, owner, name string, number int, gate contract.Gate, handle func(error) error) (int, *time.Time, error) {
	var (
		count int
		first *time.Time
	)
	page := 1
	for {
		reviews, resp, err := fetchPage(ctx, gate, c.retry, c.log, func(ctx context.Context) ([]*github.PullRequestReview, *github.Response, error) {
			reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, name, number, &github.ListOptions{Page: page, PerPage: c.perPage})
			return reviews, resp, handle(err)
		})
		if err != nil {
			return 0, nil, err
		}
		for _, r := range reviews {
			// Pending reviews have no submission time.
			if r.SubmittedAt == nil {
				continue
			}
			count++
			if at := r.SubmittedAt.Time; first == nil || at.Before(*first) {
				first = &at
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return count, first, nil
		}
		if resp.NextPage <= page {
			return 0, nil, &PaginationError{Provider: schema.GitHubProvider, Page: page, Err: fmt.Errorf("next page %d does not advance", resp.NextPage)}
		}
		page = resp.NextPage
	}
}

// GetFileBlame returns blame ranges of a file via the GraphQL API.
func (c *GitHubConnector) GetFileBlame(ctx context.Context, fullName, path, ref string) (schema.FileBlame, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return schema.FileBlame{}, err
	}
	if ref == "" {
		ref = "HEAD"
	}
	payload := map[string]any{
		"query": blameQuery,
		"variables": map[string]any{
			"owner": owner,
			"name":  name,
			"ref":   ref,
			"path":  path,
		},
	}
	result, err := withRetry(ctx, c.retry, c.log, "get file blame", func(ctx context.Context) (*blameResponse, error) {
		req, err := c.client.NewRequest(http.MethodPost, c.graphqlURL, payload)
		if err != nil {
			return nil, &APIError{Provider: schema.GitHubProvider, Message: err.Error(), Err: err}
		}
		var out blameResponse
		if _, err := c.client.Do(ctx, req, &out); err != nil {
			return nil, c.handleError(fullName + ":" + path)(err)
		}
		if len(out.Errors) > 0 {
			if strings.EqualFold(out.Errors[0].Type, "NOT_FOUND") {
				return nil, &NotFoundError{Provider: schema.GitHubProvider, Resource: fullName + ":" + path}
			}
			return nil, &APIError{Provider: schema.GitHubProvider, Message: out.Errors[0].Message}
		}
		return &out, nil
	})
	if err != nil {
		return schema.FileBlame{}, err
	}

	now := c.now()
	fb := schema.FileBlame{Path: path, Ref: ref}
	obj := result.Data.Repository.Object
	if obj == nil {
		return fb, &NotFoundError{Provider: schema.GitHubProvider, Resource: fullName + "@" + ref}
	}
	for _, r := range obj.Blame.Ranges {
		var age int64
		if !r.Commit.CommittedDate.IsZero() {
			age = int64(now.Sub(r.Commit.CommittedDate).Seconds())
		}
		fb.Ranges = append(fb.Ranges, schema.BlameRange{
			StartingLine: r.StartingLine,
			EndingLine:   r.EndingLine,
			CommitSHA:    r.Commit.OID,
			Author:       r.Commit.Author.Name,
			AuthorEmail:  r.Commit.Author.Email,
			AgeSeconds:   age,
		})
	}
	return fb, nil
}

// ListFiles lists blob paths of the tree at ref.
func (c *GitHubConnector) ListFiles(ctx context.Context, fullName, ref string) ([]string, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	tree, err := withRetry(ctx, c.retry, c.log, "list files", func(ctx context.Context) (*github.Tree, error) {
		t, _, err := c.client.Git.GetTree(ctx, owner, name, ref, true)
		return t, c.handleError(fullName + "@" + ref)(err)
	})
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		c.log.Warn("Tree listing truncated by provider", zap.String("repo", fullName), zap.String("ref", ref))
	}
	var paths []string
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			paths = append(paths, e.GetPath())
		}
	}
	return paths, nil
}

// handleError returns the error funnel for one resource.
func (c *GitHubConnector) handleError(resource string) func(error) error {
	return func(err error) error {
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var rl *github.RateLimitError
		if errors.As(err, &rl) {
			return &RateLimitError{Provider: schema.GitHubProvider, RetryAfter: max(0, time.Until(rl.Rate.Reset.Time)), Message: rl.Message}
		}
		var abuse *github.AbuseRateLimitError
		if errors.As(err, &abuse) {
			return &RateLimitError{Provider: schema.GitHubProvider, RetryAfter: abuse.GetRetryAfter(), Message: abuse.Message}
		}
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			// Statistics are still being computed; asking again later works.
			return &APIError{Provider: schema.GitHubProvider, Status: http.StatusAccepted, Message: "result not ready", Transient: true, Err: err}
		}
		var er *github.ErrorResponse
		if errors.As(err, &er) && er.Response != nil {
			return classifyStatus(schema.GitHubProvider, er.Response.StatusCode, er.Response.Header, resource, er.Message)
		}
		return &APIError{Provider: schema.GitHubProvider, Message: err.Error(), Transient: true, Err: err}
	}
}

// collectGitHubPages follows NextPage links until exhausted or max items are collected.
func collectGitHubPages[T any](ctx context.Context, max int, fetch func(page int) ([]T, *github.Response, error), handle func(error) error) ([]T, error) {
	var out []T
	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, resp, err := fetch(page)
		if err != nil {
			return nil, handle(err)
		}
		for _, it := range items {
			if max > 0 && len(out) >= max {
				return out, nil
			}
			out = append(out, it)
		}
		if resp == nil || resp.NextPage == 0 || (max > 0 && len(out) >= max) {
			return out, nil
		}
		if resp.NextPage <= page {
			return nil, &PaginationError{Provider: schema.GitHubProvider, Page: page, Err: fmt.Errorf("next page %d does not advance", resp.NextPage)}
		}
		page = resp.NextPage
	}
}

type pageResult[T any, R any] struct {
	items T
	resp  R
}

// fetchPage fetches one page, pacing through gate and retrying rate limits on the same page.
// Without a gate it falls back to the per-call retry policy.
func fetchPage[T any, R any](ctx context.Context, gate contract.Gate, policy RetryPolicy, log *zap.Logger, fetch func(context.Context) (T, R, error)) (T, R, error) {
	if gate == nil {
		p, err := withRetry(ctx, policy, log, "fetch page", func(ctx context.Context) (pageResult[T, R], error) {
			v, r, err := fetch(ctx)
			return pageResult[T, R]{v, r}, err
		})
		return p.items, p.resp, err
	}

	var (
		zeroT T
		zeroR R
	)
	for penalties := 0; ; penalties++ {
		if err := gate.Wait(ctx); err != nil {
			return zeroT, zeroR, err
		}
		v, r, err := fetch(ctx)
		if err == nil {
			gate.Reset()
			return v, r, nil
		}
		hint, limited := RetryAfter(err)
		if !limited || penalties >= maxPenaltiesPerPage {
			return zeroT, zeroR, err
		}
		applied := gate.Penalize(hint)
		log.Warn("Rate limited while paging, backing off", zap.Duration("delay", applied), zap.Int("penalty", penalties+1))
	}
}

func splitFullName(fullName string) (string, string, error) {
	owner, name, found := strings.Cut(strings.Trim(fullName, "/"), "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf("repository must be addressed as owner/name (received %q)", fullName)
	}
	return owner, name, nil
}

// commitsPerWeek estimates commit frequency over the repository's lifetime.
func commitsPerWeek(commits int, createdAt, now time.Time) float64 {
	if createdAt.IsZero() || commits == 0 {
		return 0
	}
	weeks := max(now.Sub(createdAt).Hours()/(24*7), 1)
	return float64(commits) / weeks
}

func convertGitHubRepo(r *github.Repository) schema.Repository {
	return schema.Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		Language:      r.GetLanguage(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}

// convertGitHubPR maps the listing fields. Review figures are filled by the caller;
// CommentCount stays zero unless the payload is a single pull request.
func convertGitHubPR(pr *github.PullRequest) schema.PullRequest {
	out := schema.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		State:        pr.GetState(),
		AuthorLogin:  pr.GetUser().GetLogin(),
		AuthorName:   pr.GetUser().GetName(),
		AuthorEmail:  pr.GetUser().GetEmail(),
		CreatedAt:    pr.GetCreatedAt().Time,
		HeadBranch:   pr.GetHead().GetRef(),
		BaseBranch:   pr.GetBase().GetRef(),
		CommentCount: pr.GetComments(),
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		out.MergedAt = &t
		out.State = "merged"
	}
	if pr.ClosedAt != nil {
		t := pr.ClosedAt.Time
		out.ClosedAt = &t
	}
	return out
}

const blameQuery = `query($owner: String!, $name: String!, $ref: String!, $path: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $ref) {
      ... on Commit {
        blame(path: $path) {
          ranges {
            startingLine
            endingLine
            commit {
              oid
              committedDate
              author { name email }
            }
          }
        }
      }
    }
  }
}`

type blameResponse struct {
	Data struct {
		Repository struct {
			Object *struct {
				Blame struct {
					Ranges []struct {
						StartingLine int `json:"startingLine"`
						EndingLine   int `json:"endingLine"`
						Commit       struct {
							OID           string    `json:"oid"`
							CommittedDate time.Time `json:"committedDate"`
							Author        struct {
								Name  string `json:"name"`
								Email string `json:"email"`
							} `json:"author"`
						} `json:"commit"`
					} `json:"ranges"`
				} `json:"blame"`
			} `json:"object"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"errors"`
}
