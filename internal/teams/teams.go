// Package teams loads team membership and work items from files.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"gopkg.in/yaml.v3"
)

// Team is one entry of a teams file.
type Team struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

type teamsFile struct {
	Teams []Team `yaml:"teams"`
}

// Resolver maps identities (emails, logins or names) to teams. Lookups are case-insensitive.
type Resolver struct {
	byMember map[string]Team
}

var _ contract.TeamResolver = (*Resolver)(nil)

// NewResolver indexes teams by member. When a member is listed twice the first team wins.
func NewResolver(teams []Team) (*Resolver, error) {
	r := &Resolver{byMember: make(map[string]Team)}
	for i, t := range teams {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("team %d has no id", i)
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		for _, m := range t.Members {
			key := normalize(m)
			if key == "" {
				continue
			}
			if _, taken := r.byMember[key]; !taken {
				r.byMember[key] = t
			}
		}
	}
	return r, nil
}

// LoadResolver reads a YAML teams file:
//
//	teams:
//	  - id: platform
//	    name: Platform
//	    members: [alice@example.com, bob]
func LoadResolver(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read teams file: %w", err)
	}
	var f teamsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse teams file %s: %w", path, err)
	}
	return NewResolver(f.Teams)
}

// Resolve returns the team of identity, or empty strings when it has none.
func (r *Resolver) Resolve(identity string) (string, string) {
	if r == nil {
		return "", ""
	}
	t, ok := r.byMember[normalize(identity)]
	if !ok {
		return "", ""
	}
	return t.ID, t.Name
}

// Len returns the number of known members.
func (r *Resolver) Len() int { return len(r.byMember) }

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// FileSource serves work items from a YAML or JSON file. The file is read on every call.
type FileSource struct {
	Path string
}

var _ contract.WorkItemSource = FileSource{}

// WorkItems implements contract.WorkItemSource.
func (s FileSource) WorkItems(ctx context.Context) ([]schema.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadWorkItems(s.Path)
}

type workItemsFile struct {
	WorkItems []schema.WorkItem `yaml:"work_items" json:"work_items"`
}

// LoadWorkItems reads work items from a file. JSON is used for .json files and
// YAML otherwise; both accept either a bare list or a {work_items: [...]} document.
func LoadWorkItems(path string) ([]schema.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read work items file: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	isList := trimmed[0] == '[' || trimmed[0] == '-'

	var items []schema.WorkItem
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if isList {
			err = json.Unmarshal(trimmed, &items)
		} else {
			var f workItemsFile
			err = json.Unmarshal(trimmed, &f)
			items = f.WorkItems
		}
	} else {
		if isList {
			err = yaml.Unmarshal(trimmed, &items)
		} else {
			var f workItemsFile
			err = yaml.Unmarshal(trimmed, &f)
			items = f.WorkItems
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse work items file %s: %w", path, err)
	}

	for i, item := range items {
		if strings.TrimSpace(item.WorkItemID) == "" {
			return nil, fmt.Errorf("work item %d in %s has no work_item_id", i, path)
		}
		if item.CreatedAt.IsZero() {
			return nil, fmt.Errorf("work item %s has no created_at", item.WorkItemID)
		}
	}
	return items, nil
}
