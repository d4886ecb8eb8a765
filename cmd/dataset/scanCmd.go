package dataset

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/loadit/cmd/util"
	"github.com/ValentinKolb/loadit/lib/loadit"
	"github.com/ValentinKolb/loadit/lib/sequence"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ScanCmd = &cobra.Command{
		Use:     "scan",
		Short:   "Measures read throughput of a store",
		Long:    "Runs sequential, chunk shuffled and random reads against a store and reports the time per item.",
		Args:    cobra.NoArgs,
		RunE:    runScan,
		PreRunE: processScanConfig,
	}
	scanThreads   = 4
	scanChunkSize = 0
	scanSeed      = uint64(0)
	scanSkip      = make([]string, 0)
)

func init() {
	key := "skip"
	ScanCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. random,shuffled)"))
	key = "threads"
	ScanCmd.Flags().Int(key, 4, util.WrapString("Number of goroutines reading concurrently"))
	key = "chunk-size"
	ScanCmd.Flags().Int(key, 0, util.WrapString("Chunk size of the shuffled scan (0 = shard length)"))
	key = "seed"
	ScanCmd.Flags().Uint64(key, 0, util.WrapString("Seed of the shuffled and random scans (0 = random)"))
	key = "csv"
	ScanCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processScanConfig(_ *cobra.Command, _ []string) error {
	scanThreads = max(viper.GetInt("threads"), 1)
	scanChunkSize = viper.GetInt("chunk-size")
	scanSeed = viper.GetUint64("seed")
	scanSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runScan(_ *cobra.Command, _ []string) error {
	seq, opts, err := openSequence()
	if err != nil {
		return err
	}
	defer seq.Close()

	n, err := seq.Len()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store %s is empty", opts.RootDir)
	}

	fmt.Println("Read throughput of", opts.RootDir)
	fmt.Println(opts.String())
	fmt.Printf("Items: %d\nThreads: %d\n\n", n, scanThreads)

	shuffled, err := seq.Shuffle(scanChunkSize, scanSeed)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(scanSeed, scanSeed^0x9e3779b97f4a7c15))
	random := make([]int, min(n, 1<<16))
	for k := range random {
		random[k] = rng.IntN(n)
	}

	results := make(map[string]testing.BenchmarkResult)
	benchmarks := []struct {
		name string
		seq  sequence.Sequence[[]byte]
	}{
		{"sequential", seq},
		{"shuffled", shuffled},
		{"random", seq.Select(random)},
	}

	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}
			length, err := bm.seq.Len()
			if err != nil {
				log.Printf("(%s) - error resolving length: %v\n", bm.name, err)
				return
			}

			b.SetParallelism(scanThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if _, err := bm.seq.Get(counter % length); err != nil {
						log.Printf("(%s) - error reading item %d: %v\n", bm.name, counter%length, err)
					}
					counter++
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, opts, n); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(scanSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/item (%s/item)\t%.0f items/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, opts loadit.Options[[]byte], items int) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerItem", "DurationPerItem", "ItemsPerSec", "Skipped",
		"RootDir", "Items", "Codec", "Compression", "CacheSize", "Workers",
		"Threads", "ChunkSize", "Seed",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			opts.RootDir,
			strconv.Itoa(items),
			opts.Codec.Name(),
			opts.Compression,
			strconv.Itoa(opts.MaxCacheSize),
			strconv.Itoa(opts.MaxWorkers),
			strconv.Itoa(scanThreads),
			strconv.Itoa(scanChunkSize),
			strconv.FormatUint(scanSeed, 10),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
