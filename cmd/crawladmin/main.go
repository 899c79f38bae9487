// Command crawladmin is the thin admin/query CLI (spec §6, SPEC_FULL.md
// §12): status, inspect-rejects, and explain, reading only the artifacts
// the core crawler writes. It carries no business logic of its own.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/sources"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	configPath := os.Getenv("LISTINGCRAWL_CONFIG")
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "status":
		os.Exit(runStatus(cfg))
	case "inspect-rejects":
		fs := flag.NewFlagSet("inspect-rejects", flag.ExitOnError)
		last := fs.Int("last", 10, "number of most recent reject records to show")
		fs.Parse(os.Args[2:])
		os.Exit(runInspectRejects(cfg, *last))
	case "explain":
		fs := flag.NewFlagSet("explain", flag.ExitOnError)
		url := fs.String("url", "", "URL to explain the most recent fetch outcome for")
		fs.Parse(os.Args[2:])
		os.Exit(runExplain(cfg, *url))
	case "validate-sources":
		os.Exit(runValidateSources(cfg))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: crawladmin <status|inspect-rejects --last N|explain --url U|validate-sources>")
}

// runValidateSources runs the lenient per-row validator over the configured
// sources CSV and prints (source_id, status, detail) for every row (spec
// §4.A, §8 scenario 3). Exits non-zero if any row fails.
func runValidateSources(cfg *common.Config) int {
	results, err := sources.ValidateSources(cfg.Sources.CSVPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "validate-sources:", err)
		return 1
	}

	exitCode := 0
	for _, r := range results {
		status := "OK"
		if !r.OK {
			status = "FAIL"
			exitCode = 1
		}
		fmt.Printf("%s\t%s\t%s\n", r.SourceID, status, r.Detail)
	}
	return exitCode
}

// runStatus tails manifests/history.jsonl and prints the most recent run's
// counts and exit code.
func runStatus(cfg *common.Config) int {
	path := filepath.Join(cfg.Storage.ManifestsRoot, "history.jsonl")
	lines, err := readLines(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading manifest history failed:", err)
		return 1
	}
	if len(lines) == 0 {
		fmt.Println("no runs recorded yet")
		return 0
	}

	var manifest map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &manifest); err != nil {
		fmt.Fprintln(os.Stderr, "parsing manifest history failed:", err)
		return 1
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "formatting manifest failed:", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// runInspectRejects prints the last N quarantine records, newest first, by
// filename ordering (reject_<timestamp><microseconds>.json sorts
// lexicographically by time).
func runInspectRejects(cfg *common.Config, last int) int {
	entries, err := os.ReadDir(cfg.Storage.QuarantineDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no quarantine records yet")
			return 0
		}
		fmt.Fprintln(os.Stderr, "reading quarantine dir failed:", err)
		return 1
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "reject_") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if last > 0 && len(names) > last {
		names = names[len(names)-last:]
	}

	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		data, err := os.ReadFile(filepath.Join(cfg.Storage.QuarantineDir, name))
		if err != nil {
			fmt.Fprintln(os.Stderr, "reading", name, "failed:", err)
			continue
		}
		fmt.Printf("--- %s ---\n%s\n", name, string(data))
	}
	return 0
}

// runExplain scans the silver tier's .jsonl files for records whose JSON
// line contains url as a substring and prints the last match found (files
// in directory-listing name order, lines in file order) as the explanation
// of what the core did with that URL.
func runExplain(cfg *common.Config, url string) int {
	if url == "" {
		fmt.Fprintln(os.Stderr, "explain: --url is required")
		return 1
	}

	entries, err := os.ReadDir(cfg.Storage.SilverRoot)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no silver records yet")
			return 0
		}
		fmt.Fprintln(os.Stderr, "reading silver dir failed:", err)
		return 1
	}

	var found string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		lines, err := readLines(filepath.Join(cfg.Storage.SilverRoot, e.Name()))
		if err != nil {
			continue
		}
		for _, line := range lines {
			if strings.Contains(line, url) {
				found = line
			}
		}
	}

	if found == "" {
		fmt.Println("no record found for", url)
		return 0
	}

	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(found), &rec); err != nil {
		fmt.Println(found)
		return 0
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
	return 0
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
