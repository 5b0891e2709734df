// Package gitclient extracts commits, commit stats, files and blame from a local repository.
package gitclient

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/schema"
)

// Identity is what a local repository is recorded as.
type Identity struct {
	ID        uuid.UUID
	Path      string
	RemoteURL string
	Ref       string
	Head      plumbing.Hash
}

// OpenRepository opens the repository at path. The path may point anywhere inside the working tree.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s is not a git repository (run 'git init' or pass a repository path): %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", path, err)
	}
	return repo, nil
}

// ResolveIdentity derives the repository id and the synced ref.
// The id comes from the override, else the origin remote (or the first remote
// by name), else the absolute path.
func ResolveIdentity(repo *git.Repository, absPath string, override *uuid.UUID) (Identity, error) {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Identity{}, fmt.Errorf("repository %s has no commits yet", absPath)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve HEAD of %s: %w", absPath, err)
	}

	remoteURL, err := primaryRemoteURL(repo)
	if err != nil {
		return Identity{}, err
	}

	src := schema.RepoIDSource{RemoteURL: remoteURL, AbsPath: absPath}
	if override != nil {
		src.Override = override.String()
	}
	id, err := schema.DeterministicRepoID(src)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:        id,
		Path:      absPath,
		RemoteURL: remoteURL,
		Ref:       head.Name().Short(),
		Head:      head.Hash(),
	}, nil
}

func primaryRemoteURL(repo *git.Repository) (string, error) {
	remotes, err := repo.Remotes()
	if err != nil {
		return "", fmt.Errorf("failed to list remotes: %w", err)
	}
	sort.Slice(remotes, func(i, j int) bool {
		return remotes[i].Config().Name < remotes[j].Config().Name
	})
	for _, r := range remotes {
		if r.Config().Name == git.DefaultRemoteName && len(r.Config().URLs) > 0 {
			return r.Config().URLs[0], nil
		}
	}
	for _, r := range remotes {
		if len(r.Config().URLs) > 0 {
			return r.Config().URLs[0], nil
		}
	}
	return "", nil
}
