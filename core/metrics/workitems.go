package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/huangsam/gitpulse/core/algo"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
)

// bugType is the work item type counted in the bug completion ratio.
const bugType = "bug"

type groupKey struct {
	provider, scope, team string
}

type groupAcc struct {
	teamName            string
	started, completed  int
	startedUnassigned   int
	completedUnassigned int
	wip, wipUnassigned  int
	bugs                int
	storyPoints         float64
	cycle, lead, wipAge []float64
}

type workUserKey struct {
	provider, scope, identity, team string
}

type workUserAcc struct {
	teamName           string
	started, completed int
	wip                int
	cycle              []float64
}

// ComputeWorkItemMetricsDaily computes work-item flow for one UTC day, grouped by
// (provider, scope, team) and by (provider, scope, assignee, team). The primary
// assignee decides the team; items without one land in the "unassigned" user bucket.
//
// Items created at or after the end of the day are ignored, as are items that
// neither started, completed nor were in progress at the end of the day. Cycle
// time needs a start timestamp; lead time runs from creation. Percentile columns
// are nil when their sample is empty. A nil resolver leaves team fields empty.
func ComputeWorkItemMetricsDaily(day time.Time, items []schema.WorkItem, computedAt time.Time, resolver contract.TeamResolver) schema.WorkItemMetricsResult {
	start, end := schema.DayWindow(day)
	computedAt = computedAt.UTC()

	groups := make(map[groupKey]*groupAcc)
	users := make(map[workUserKey]*workUserAcc)
	var result schema.WorkItemMetricsResult

	for _, item := range items {
		created := item.CreatedAt.UTC()
		if !created.Before(end) {
			continue
		}
		startedAt := utcPtr(item.StartedAt)
		completedAt := utcPtr(item.CompletedAt)

		startedToday := startedAt != nil && inWindow(*startedAt, start, end)
		completedToday := completedAt != nil && inWindow(*completedAt, start, end)
		wipEndOfDay := startedAt != nil && startedAt.Before(end) && (completedAt == nil || !completedAt.Before(end))
		if !startedToday && !completedToday && !wipEndOfDay {
			continue
		}

		assignee := primaryAssignee(item.Assignees)
		var teamID, teamName string
		if resolver != nil {
			teamID, teamName = resolver.Resolve(assignee)
		}
		unassigned := assignee == ""

		gk := groupKey{provider: item.Provider, scope: item.WorkScopeID, team: teamID}
		g, ok := groups[gk]
		if !ok {
			g = &groupAcc{teamName: teamName}
			groups[gk] = g
		}
		identity := assignee
		if unassigned {
			identity = schema.UnassignedIdentity
		}
		uk := workUserKey{provider: item.Provider, scope: item.WorkScopeID, identity: identity, team: teamID}
		u, ok := users[uk]
		if !ok {
			u = &workUserAcc{teamName: teamName}
			users[uk] = u
		}

		if startedToday {
			g.started++
			u.started++
			if unassigned {
				g.startedUnassigned++
			}
		}

		if completedToday {
			g.completed++
			u.completed++
			if unassigned {
				g.completedUnassigned++
			}
			if strings.EqualFold(item.Type, bugType) {
				g.bugs++
			}
			if item.StoryPoints != nil {
				g.storyPoints += *item.StoryPoints
			}

			lead := completedAt.Sub(created).Hours()
			g.lead = append(g.lead, lead)

			var cycle *float64
			if startedAt != nil {
				hours := completedAt.Sub(*startedAt).Hours()
				cycle = &hours
				g.cycle = append(g.cycle, hours)
				u.cycle = append(u.cycle, hours)
			}

			result.CycleTimes = append(result.CycleTimes, schema.WorkItemCycleTimeRecord{
				WorkItemID:     item.WorkItemID,
				Provider:       item.Provider,
				Day:            schema.UTCDay(*completedAt),
				WorkScopeID:    item.WorkScopeID,
				TeamID:         teamID,
				TeamName:       teamName,
				Assignee:       assignee,
				Type:           item.Type,
				Status:         item.Status,
				CreatedAt:      created,
				StartedAt:      startedAt,
				CompletedAt:    *completedAt,
				CycleTimeHours: cycle,
				LeadTimeHours:  lead,
				ComputedAt:     computedAt,
			})
		}

		if wipEndOfDay {
			g.wip++
			u.wip++
			if unassigned {
				g.wipUnassigned++
			}
			g.wipAge = append(g.wipAge, end.Sub(*startedAt).Hours())
		}
	}

	gkeys := make([]groupKey, 0, len(groups))
	for k := range groups {
		gkeys = append(gkeys, k)
	}
	sort.Slice(gkeys, func(i, j int) bool {
		a, b := gkeys[i], gkeys[j]
		if a.provider != b.provider {
			return a.provider < b.provider
		}
		if a.scope != b.scope {
			return a.scope < b.scope
		}
		return a.team < b.team
	})
	for _, k := range gkeys {
		g := groups[k]
		result.Groups = append(result.Groups, schema.WorkItemMetricsDailyRecord{
			Day:                      start,
			Provider:                 k.provider,
			WorkScopeID:              k.scope,
			TeamID:                   k.team,
			TeamName:                 g.teamName,
			ItemsStarted:             g.started,
			ItemsCompleted:           g.completed,
			ItemsStartedUnassigned:   g.startedUnassigned,
			ItemsCompletedUnassigned: g.completedUnassigned,
			WIPCountEndOfDay:         g.wip,
			WIPUnassignedEndOfDay:    g.wipUnassigned,
			CycleTimeP50Hours:        algo.PercentilePtr(g.cycle, 50),
			CycleTimeP90Hours:        algo.PercentilePtr(g.cycle, 90),
			LeadTimeP50Hours:         algo.PercentilePtr(g.lead, 50),
			LeadTimeP90Hours:         algo.PercentilePtr(g.lead, 90),
			WIPAgeP50Hours:           algo.PercentilePtr(g.wipAge, 50),
			WIPAgeP90Hours:           algo.PercentilePtr(g.wipAge, 90),
			BugCompletedRatio:        algo.Ratio(g.bugs, g.completed),
			StoryPointsCompleted:     g.storyPoints,
			ComputedAt:               computedAt,
		})
	}

	ukeys := make([]workUserKey, 0, len(users))
	for k := range users {
		ukeys = append(ukeys, k)
	}
	sort.Slice(ukeys, func(i, j int) bool {
		a, b := ukeys[i], ukeys[j]
		if a.provider != b.provider {
			return a.provider < b.provider
		}
		if a.scope != b.scope {
			return a.scope < b.scope
		}
		if a.identity != b.identity {
			return a.identity < b.identity
		}
		return a.team < b.team
	})
	for _, k := range ukeys {
		u := users[k]
		result.Users = append(result.Users, schema.WorkItemUserMetricsDailyRecord{
			Day:               start,
			Provider:          k.provider,
			WorkScopeID:       k.scope,
			UserIdentity:      k.identity,
			TeamID:            k.team,
			TeamName:          u.teamName,
			ItemsStarted:      u.started,
			ItemsCompleted:    u.completed,
			WIPCountEndOfDay:  u.wip,
			CycleTimeP50Hours: algo.PercentilePtr(u.cycle, 50),
			CycleTimeP90Hours: algo.PercentilePtr(u.cycle, 90),
			ComputedAt:        computedAt,
		})
	}
	return result
}

func primaryAssignee(assignees []string) string {
	for _, a := range assignees {
		if a = strings.TrimSpace(a); a != "" {
			return a
		}
	}
	return ""
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
