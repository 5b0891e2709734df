// Package main provides a performance benchmarking tool for the gitpulse CLI.
// It measures how long syncing, metrics and hotspot ranking take across repository
// sizes and storage backends, treating the first sync into a fresh store as cold and
// averaging the re-syncs as warm, and writes a CSV for documentation.
//
// Prerequisites:
// - gitpulse binary installed and available in PATH
// - Test repositories cloned to the specified base directory
// - Git repositories: csv-parser, fd, git, kubernetes
//
// Usage: go run benchmark/main.go [repo-base-dir]
//
//	repo-base-dir: Directory containing test repositories
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// BenchmarkResult holds the timings of one repository against one backend.
type BenchmarkResult struct {
	Repository string
	Backend    string
	ColdSync   string
	WarmSync   string
	Daily      string
	Hotspots   string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase  string
	Timeout   time.Duration
	Workers   int
	SyncRuns  int
	Since     string
	TestRepos []string
	Backends  []string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}
	repoBase := os.Args[1]

	config := BenchmarkConfig{
		RepoBase:  repoBase,
		Timeout:   10 * time.Minute,
		Workers:   14,
		SyncRuns:  4,
		Since:     time.Now().AddDate(-1, 0, 0).Format(time.DateOnly),
		TestRepos: []string{"csv-parser", "fd", "git", "kubernetes"},
		Backends:  []string{"sqlite", "parquet"},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the gitpulse binary and test repositories exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("gitpulse"); err != nil {
		return fmt.Errorf("gitpulse binary not found in PATH")
	}

	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}

	return nil
}

// runBenchmarks executes the suite for every repository and backend pair
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %d backends, %v timeout, %d workers, %d sync runs since %s\n",
		len(config.TestRepos), len(config.Backends), config.Timeout, config.Workers, config.SyncRuns, config.Since)

	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		for _, backend := range config.Backends {
			fmt.Printf("Benchmarking %s on %s\n", repo, backend)
			results = append(results, runBenchmarkSuite(config, repo, repoPath, backend))
		}
	}

	return results
}

// connectionFor returns a fresh store of the given backend under dir
func connectionFor(backend, dir string) string {
	if backend == "parquet" {
		return "parquet://" + filepath.Join(dir, "facts")
	}
	return "sqlite://" + filepath.Join(dir, "gitpulse.db")
}

// runBenchmarkSuite syncs a repository into a fresh store, then times the metrics
// and hotspot commands against what was synced
func runBenchmarkSuite(config BenchmarkConfig, repo, repoPath, backend string) BenchmarkResult {
	result := BenchmarkResult{Repository: repo, Backend: backend}

	dir, err := os.MkdirTemp("", "gitpulse-bench-*")
	if err != nil {
		fmt.Printf("  Failed to create store dir: %v\n", err)
		return result
	}
	defer func() { _ = os.RemoveAll(dir) }()
	conn := connectionFor(backend, dir)

	syncArgs := []string{"sync", "local", repoPath, "--since", config.Since, "--workers", fmt.Sprint(config.Workers)}
	fmt.Printf("  Sync phase (%d runs)\n", config.SyncRuns)
	times := timeRuns(config, conn, syncArgs, config.SyncRuns)
	result.ColdSync, result.WarmSync = "TIMEOUT", "TIMEOUT"
	if len(times) > 0 {
		result.ColdSync = formatSeconds(times[0])
		result.WarmSync = average(times[1:])
	}

	fmt.Printf("  Metrics phase\n")
	result.Daily = average(timeRuns(config, conn, []string{"metrics", "daily", "--backfill-days", "7"}, 1))

	fmt.Printf("  Hotspots phase\n")
	result.Hotspots = average(timeRuns(config, conn, []string{"hotspots", repoPath, "--hotspot-window", "365"}, 1))

	fmt.Printf("  Cold sync: %s, Warm sync: %s, Daily: %s, Hotspots: %s\n",
		result.ColdSync, result.WarmSync, result.Daily, result.Hotspots)
	return result
}

// timeRuns executes a gitpulse command numRuns times against conn and returns the
// durations of the successful runs in seconds
func timeRuns(config BenchmarkConfig, conn string, args []string, numRuns int) []float64 {
	var times []float64
	for run := 1; run <= numRuns; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		cmd := exec.CommandContext(ctx, "gitpulse", args...)
		cmd.Env = append(os.Environ(), "GITPULSE_DB="+conn, "GITPULSE_LOG_LEVEL=error", "GITPULSE_OUTPUT=json")

		start := time.Now()
		output, err := cmd.CombinedOutput()
		elapsed := time.Since(start).Seconds()
		cancel()

		if err != nil {
			fmt.Printf("    run %d failed: %v\n%s\n", run, err, output)
			continue
		}
		times = append(times, elapsed)
	}
	return times
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3fs", s)
}

// average formats the mean of times, or TIMEOUT when no run succeeded
func average(times []float64) string {
	if len(times) == 0 {
		return "TIMEOUT"
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return formatSeconds(sum / float64(len(times)))
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/gitpulse_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "backend", "cold_sync", "warm_sync_avg", "daily", "hotspots"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range results {
		if err := writer.Write([]string{r.Repository, r.Backend, r.ColdSync, r.WarmSync, r.Daily, r.Hotspots}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results grouped by backend
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")

	for _, backend := range []string{"sqlite", "parquet"} {
		fmt.Printf("%s:\n", backend)
		for _, r := range results {
			if r.Backend == backend {
				fmt.Printf("  %-12s: Cold sync: %s, Warm sync: %s, Daily: %s, Hotspots: %s\n",
					r.Repository, r.ColdSync, r.WarmSync, r.Daily, r.Hotspots)
			}
		}
	}
}
