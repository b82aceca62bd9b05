// asbreader prints a quick inventory of a launch results file: how many
// batches it holds, grouped by situation label and by app under test.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/iafilius/AppStartupBench/src/analysis"
	"github.com/iafilius/AppStartupBench/src/bench"
)

func main() {
	var file string
	var max int
	var situation string
	flag.StringVar(&file, "file", bench.DefaultResultsFile, "Path to launch_results.jsonl")
	flag.IntVar(&max, "n", 5000, "Max batches to load")
	flag.StringVar(&situation, "situation", "", "Optional situation filter (exact match)")
	flag.Parse()

	sums, err := analysis.AnalyzeRecentResultsFull(file, bench.SchemaVersion, max, situation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	situations := map[string]int{}
	appLaunches := map[string]int{}
	for _, s := range sums {
		k := s.Situation
		if k == "" {
			k = "(none)"
		}
		situations[k]++
		for name, a := range s.Apps {
			appLaunches[name] += a.Launches
		}
	}

	fmt.Printf("Total batches: %d\n", len(sums))
	for _, k := range sortedKeys(situations) {
		fmt.Printf("%s: %d\n", k, situations[k])
	}
	if len(appLaunches) > 0 {
		fmt.Println("Launches per app:")
		for _, k := range sortedKeys(appLaunches) {
			fmt.Printf("  %s: %d\n", k, appLaunches[k])
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
