package remote

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/huangsam/gitpulse/schema"
)

// ErrInvalidPattern is returned for a repository pattern that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid repository pattern")

// MatchRepoPattern reports whether a full name ("owner/name") matches a shell-style
// pattern, case-insensitively. "*" matches any run of characters including "/",
// "?" matches one character and "[...]" a character class.
func MatchRepoPattern(fullName, pattern string) (bool, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(strings.ToLower(fullName)), nil
}

// FilterByPattern keeps repositories whose full name matches pattern, up to max (0 = no cap).
func FilterByPattern(repos []schema.Repository, pattern string, max int) ([]schema.Repository, error) {
	m, err := newRepoMatcher(pattern, max)
	if err != nil {
		return nil, err
	}
	m.add(repos)
	return m.matched, nil
}

// repoMatcher accumulates matches page by page until the cap is reached.
type repoMatcher struct {
	re      *regexp.Regexp
	max     int
	matched []schema.Repository
}

func newRepoMatcher(pattern string, max int) (*repoMatcher, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &repoMatcher{re: re, max: max, matched: []schema.Repository{}}, nil
}

// add keeps the matching repositories of one page and reports whether more pages are wanted.
func (m *repoMatcher) add(page []schema.Repository) bool {
	for _, r := range page {
		if m.full() {
			return false
		}
		if m.re.MatchString(strings.ToLower(r.FullName)) {
			m.matched = append(m.matched, r)
		}
	}
	return !m.full()
}

func (m *repoMatcher) full() bool {
	return m.max > 0 && len(m.matched) >= m.max
}

// PatternOwner returns the owner segment of a pattern when it contains no wildcard,
// so the listing can be narrowed to that owner before filtering.
func PatternOwner(pattern string) (string, bool) {
	owner, _, found := strings.Cut(pattern, "/")
	if !found || owner == "" || strings.ContainsAny(owner, "*?[") {
		return "", false
	}
	return owner, true
}

// resolveFilter narrows an empty filter to the literal owner of the pattern.
func resolveFilter(filter schema.RepoFilter, pattern string) schema.RepoFilter {
	if filter.Org != "" || filter.User != "" || filter.Search != "" {
		return filter
	}
	if owner, ok := PatternOwner(pattern); ok {
		filter.User = owner
	}
	return filter
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	p := strings.ToLower(pattern)
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := strings.IndexByte(p[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := p[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}
