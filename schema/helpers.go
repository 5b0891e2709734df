package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepoIDSource lists the inputs a repository id can be derived from, in precedence order.
type RepoIDSource struct {
	Override  string // explicit id, must parse as a UUID
	RemoteURL string // origin URL or the first remote
	AbsPath   string // absolute path of the working tree
}

// ErrNoRepoIdentity is returned when no input is available to derive a repository id.
var ErrNoRepoIdentity = errors.New("no override, remote url or path to derive a repository id from")

// DeterministicRepoID returns a stable id for a repository so that re-syncing the
// same repository always addresses the same records.
func DeterministicRepoID(src RepoIDSource) (uuid.UUID, error) {
	if override := strings.TrimSpace(src.Override); override != "" {
		id, err := uuid.Parse(override)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid repository id override %q: %w", override, err)
		}
		return id, nil
	}
	if remote := NormalizeRemoteURL(src.RemoteURL); remote != "" {
		return hashID(remote), nil
	}
	if path := strings.TrimSpace(src.AbsPath); path != "" {
		return hashID(path), nil
	}
	return uuid.Nil, ErrNoRepoIdentity
}

// RemoteRepoID returns the id of a remote repository from its web URL, or from
// provider and full name when the URL is missing.
func RemoteRepoID(provider Provider, repo Repository) uuid.UUID {
	if remote := NormalizeRemoteURL(repo.URL); remote != "" {
		return hashID(remote)
	}
	return hashID(strings.ToLower(strings.TrimSpace(string(provider) + "/" + repo.FullName)))
}

// repoNamespace scopes name-based repository ids.
var repoNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/huangsam/gitpulse/repos"))

// hashID derives an RFC 4122 version 5 id from s.
func hashID(s string) uuid.UUID {
	return uuid.NewSHA1(repoNamespace, []byte(s))
}

// NormalizeRemoteURL reduces the ssh and https forms of a remote to "host/owner/name"
// so that a local clone and its hosted repository share an id.
//
//	git@github.com:acme/api.git    -> github.com/acme/api
//	https://github.com/Acme/API    -> github.com/acme/api
func NormalizeRemoteURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if at := strings.Index(s, "@"); at >= 0 && strings.Contains(s[at:], ":") {
		s = strings.Replace(s[at+1:], ":", "/", 1)
	}
	if at := strings.LastIndex(s, "@"); at >= 0 && at < strings.Index(s+"/", "/") {
		s = s[at+1:]
	}
	s = strings.TrimSuffix(strings.TrimRight(s, "/"), ".git")
	return s
}

// UTCDay truncates t to midnight UTC.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the half-open UTC window [start, start+24h) of the day containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := UTCDay(t)
	return start, start.Add(24 * time.Hour)
}
