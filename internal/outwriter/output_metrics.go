package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
)

// PrintDailySummary outputs a daily metrics report in the configured format.
func PrintDailySummary(summary schema.DailyJobSummary, cfg *contract.Config) error {
	return dispatch(cfg,
		func(w io.Writer) error { return writeJSON(w, summary) },
		func(w io.Writer) error { return writeDailyCSV(w, summary) },
		func(w io.Writer) error { return writeDailyTable(w, summary) },
	)
}

func dailyRow(d schema.DailyJobDay) []string {
	return []string{
		d.Day.Format(contract.DateFormat),
		strconv.Itoa(d.Repos),
		strconv.Itoa(d.Users),
		strconv.Itoa(d.Commits),
		strconv.Itoa(d.Hotspots),
		strconv.Itoa(d.WorkItemGroups),
		strconv.Itoa(d.WorkItemUsers),
		strconv.Itoa(d.WorkItemCycles),
	}
}

func writeDailyCSV(w io.Writer, s schema.DailyJobSummary) error {
	header := []string{"day", "repos", "users", "commits", "hotspots", "work_item_groups", "work_item_users", "work_item_cycles", "stat_rows", "pr_rows"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, d := range s.Days {
			rec := append(dailyRow(d), strconv.Itoa(d.StatRowsScanned), strconv.Itoa(d.PRRowsScanned))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeDailyTable(w io.Writer, s schema.DailyJobSummary) error {
	headers := []string{"Day", "Repos", "Users", "Commits", "Hotspots", "WI Groups", "WI Users", "WI Cycles"}
	data := make([][]string, 0, len(s.Days))
	for _, d := range s.Days {
		data = append(data, dailyRow(d))
	}
	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Computed %d day(s) on %s in %s\n", len(s.Days), s.Backend, formatDuration(s.Duration))
	return err
}

// PrintHotspots outputs a file hotspot ranking in the configured format.
func PrintHotspots(records []schema.FileMetricsRecord, cfg *contract.Config, duration time.Duration) error {
	return dispatch(cfg,
		func(w io.Writer) error { return writeHotspotsJSON(w, records) },
		func(w io.Writer) error { return writeHotspotsCSV(w, records) },
		func(w io.Writer) error { return writeHotspotsTable(w, records, cfg, duration) },
	)
}

func writeHotspotsJSON(w io.Writer, records []schema.FileMetricsRecord) error {
	type jsonHotspot struct {
		Rank  int    `json:"rank"`
		Label string `json:"label"`
		schema.FileMetricsRecord
	}
	output := make([]jsonHotspot, len(records))
	for i, r := range records {
		output[i] = jsonHotspot{Rank: i + 1, Label: contract.GetPlainLabel(r.HotspotScore), FileMetricsRecord: r}
	}
	return writeJSON(w, output)
}

func writeHotspotsCSV(w io.Writer, records []schema.FileMetricsRecord) error {
	header := []string{"rank", "path", "score", "label", "churn", "contributors", "commits", "day"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, r := range records {
			rec := []string{
				strconv.Itoa(i + 1),
				r.Path,
				strconv.FormatFloat(r.HotspotScore, 'f', 4, 64),
				contract.GetPlainLabel(r.HotspotScore),
				strconv.Itoa(r.Churn),
				strconv.Itoa(r.Contributors),
				strconv.Itoa(r.CommitsCount),
				r.Day.Format(contract.DateFormat),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeHotspotsTable(w io.Writer, records []schema.FileMetricsRecord, cfg *contract.Config, duration time.Duration) error {
	headers := []string{"Rank", "Path", "Score", "Label", "Churn", "Contrib", "Commits"}
	width := GetMaxTablePathWidth(cfg, 60)

	totalChurn := 0
	data := make([][]string, 0, len(records))
	for i, r := range records {
		totalChurn += r.Churn
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(r.Path, width),
			strconv.FormatFloat(r.HotspotScore, 'f', 2, 64),
			scoreLabel(r.HotspotScore, cfg.UseColors),
			strconv.Itoa(r.Churn),
			strconv.Itoa(r.Contributors),
			strconv.Itoa(r.CommitsCount),
		})
	}
	if err := writeTable(w, headers, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing top %d files over %d day(s) ending %s (total churn: %d) in %s\n",
		len(records), cfg.HotspotWindow, cfg.Day.Format(contract.DateFormat), totalChurn, formatDuration(duration))
	return err
}
