package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
)

// PrintLocalSummary outputs a local extraction report in the configured format.
func PrintLocalSummary(summary schema.LocalSummary, cfg *contract.Config) error {
	return dispatch(cfg,
		func(w io.Writer) error { return writeJSON(w, summary) },
		func(w io.Writer) error { return writeLocalCSV(w, summary) },
		func(w io.Writer) error { return writeLocalTable(w, summary, cfg) },
	)
}

func localRows(s schema.LocalSummary) [][]string {
	return [][]string{
		{"commits", strconv.Itoa(s.Commits), "-"},
		{"commit_stats", strconv.Itoa(s.CommitStats), strconv.Itoa(s.FailedCommits)},
		{"files", strconv.Itoa(s.Files), strconv.Itoa(s.FailedFiles)},
		{"blame_lines", strconv.Itoa(s.BlameLines), strconv.Itoa(s.FailedBlame)},
	}
}

func writeLocalCSV(w io.Writer, s schema.LocalSummary) error {
	return writeCSVWithHeader(w, []string{"repo_id", "repo_path", "ref", "family", "written", "failed"}, func(cw *csv.Writer) error {
		for _, row := range localRows(s) {
			if err := cw.Write(append([]string{s.RepoID, s.RepoPath, s.Ref}, row...)); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeLocalTable(w io.Writer, s schema.LocalSummary, cfg *contract.Config) error {
	path := contract.TruncatePath(s.RepoPath, GetMaxTablePathWidth(cfg, 40))
	if _, err := fmt.Fprintf(w, "Repository %s (%s) at %s\n", path, s.RepoID, s.Ref); err != nil {
		return err
	}
	if err := writeTable(w, []string{"Family", "Written", "Failed"}, localRows(s)); err != nil {
		return err
	}
	failed := s.FailedCommits + s.FailedFiles + s.FailedBlame
	_, err := fmt.Fprintf(w, "Sync %s in %s\n", statusLabel(failed == 0, "completed", "completed with failures", cfg.UseColors), formatDuration(s.Duration))
	return err
}

// PrintBatchSummary outputs a remote batch report in the configured format.
func PrintBatchSummary(summary schema.BatchSummary, cfg *contract.Config) error {
	return dispatch(cfg,
		func(w io.Writer) error { return writeJSON(w, summary) },
		func(w io.Writer) error { return writeBatchCSV(w, summary) },
		func(w io.Writer) error { return writeBatchTable(w, summary, cfg) },
	)
}

func backfillCounts(r schema.BatchResult) (files, stats, blame int) {
	if r.Backfill == nil {
		return 0, 0, 0
	}
	return r.Backfill.Files, r.Backfill.CommitStats, r.Backfill.BlameLines
}

func writeBatchCSV(w io.Writer, s schema.BatchSummary) error {
	header := []string{"provider", "repository", "success", "stored", "commits", "pull_requests", "files", "commit_stats", "blame_lines", "error"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range s.Results {
			files, stats, blame := backfillCounts(r)
			rec := []string{
				string(s.Provider),
				r.Repository.FullName,
				strconv.FormatBool(r.Success),
				strconv.FormatBool(r.Stored),
				strconv.Itoa(len(r.Commits)),
				strconv.Itoa(len(r.PullRequests)),
				strconv.Itoa(files),
				strconv.Itoa(stats),
				strconv.Itoa(blame),
				r.Error,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeBatchTable(w io.Writer, s schema.BatchSummary, cfg *contract.Config) error {
	headers := []string{"Repository", "Status", "Commits", "PRs"}
	if cfg.Backfill {
		headers = append(headers, "Files", "Stats", "Blame")
	}
	width := GetMaxTablePathWidth(cfg, 40)

	var data [][]string
	for _, r := range s.Results {
		row := []string{
			contract.TruncatePath(r.Repository.FullName, width),
			statusLabel(r.Success && r.Stored, "ok", "failed", cfg.UseColors),
			strconv.Itoa(len(r.Commits)),
			strconv.Itoa(len(r.PullRequests)),
		}
		if cfg.Backfill {
			files, stats, blame := backfillCounts(r)
			row = append(row, strconv.Itoa(files), strconv.Itoa(stats), strconv.Itoa(blame))
		}
		data = append(data, row)
	}
	if err := writeTable(w, headers, data); err != nil {
		return err
	}

	for _, r := range s.Results {
		if r.Error == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s: %s\n", r.Repository.FullName, r.Error); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Processed %d %s repositories (%d successful, %d failed, %d stored) in %s\n",
		s.Total, s.Provider, s.Successful, s.Failed, s.Stored, formatDuration(s.Duration))
	return err
}
