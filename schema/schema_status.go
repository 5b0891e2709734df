package schema

import "time"

// TableStatus represents row count and freshness of one table or collection.
type TableStatus struct {
	Name       string    `json:"name"`
	Rows       int64     `json:"rows"`
	LastSynced time.Time `json:"last_synced,omitzero"`
}

// StoreStatus represents the status of a fact store.
type StoreStatus struct {
	Backend   Backend       `json:"backend"`
	Family    BackendFamily `json:"family"`
	Connected bool          `json:"connected"`
	Tables    []TableStatus `json:"tables"`
}

// LocalSummary is the end-of-run report of a local extraction.
type LocalSummary struct {
	RepoID        string        `json:"repo_id"`
	RepoPath      string        `json:"repo_path"`
	Ref           string        `json:"ref"`
	Commits       int           `json:"commits"`
	CommitStats   int           `json:"commit_stats"`
	Files         int           `json:"files"`
	BlameLines    int           `json:"blame_lines"`
	FailedCommits int           `json:"failed_commits"`
	FailedFiles   int           `json:"failed_files"`
	FailedBlame   int           `json:"failed_blame"`
	Duration      time.Duration `json:"duration_ns"`
}

// DailyJobDay reports what the daily job wrote for one day.
type DailyJobDay struct {
	Day             time.Time `json:"day"`
	Repos           int       `json:"repos"`
	Users           int       `json:"users"`
	Commits         int       `json:"commits"`
	Hotspots        int       `json:"hotspots"`
	WorkItemGroups  int       `json:"work_item_groups"`
	WorkItemUsers   int       `json:"work_item_users"`
	WorkItemCycles  int       `json:"work_item_cycles"`
	StatRowsScanned int       `json:"stat_rows_scanned"`
	PRRowsScanned   int       `json:"pr_rows_scanned"`
}

// DailyJobSummary is the end-of-run report of the daily metrics job.
type DailyJobSummary struct {
	Backend  Backend       `json:"backend"`
	Days     []DailyJobDay `json:"days"`
	Duration time.Duration `json:"duration_ns"`
}
