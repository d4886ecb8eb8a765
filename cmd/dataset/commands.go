package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/sequence"
	"github.com/ValentinKolb/loadit/lib/shardstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BuildCmd = &cobra.Command{
		Use:   "build",
		Short: "Materializes every line of the source as a shard on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("source") == "" {
				return fmt.Errorf("--source is required")
			}

			seq, opts, err := openSequence()
			if err != nil {
				return err
			}
			defer seq.Close()

			fmt.Println(opts.String())

			begin := time.Now()
			count := 0
			for _, err := range sequence.All[[]byte](seq) {
				if err != nil {
					return err
				}
				count++
			}

			if count == 0 {
				// an empty source never produces a shard, the length is still finalized
				if _, err := seq.Len(); err != nil {
					return err
				}
			}

			complete, err := seq.AllPresent()
			if err != nil {
				return err
			}

			fmt.Printf("built %d items in %s (complete: %t)\n", count, time.Since(begin).Round(time.Millisecond), complete)
			if stats := seq.Stats(); stats.Writers != nil {
				fmt.Println(stats.Writers.String())
			}
			return nil
		},
	}
	InfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the metadata of a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := viper.GetString("root-dir")
			if _, exists, err := shardstore.ReadMeta(root); err != nil {
				return err
			} else if !exists {
				return fmt.Errorf("no store at %s", root)
			}

			seq, _, err := openSequence()
			if err != nil {
				return err
			}
			defer seq.Close()

			meta := seq.Meta()
			var s common.Sections
			s.Section("Store")
			s.Field("Root Dir", root)
			s.Field("Format Version", strconv.Itoa(meta.Version))
			s.Field("Created At", meta.CreatedAt.Format(time.RFC3339))
			s.Field("Codec", meta.Codec)
			s.Field("Compression", meta.Compression)
			s.Section("Shards")
			s.Field("Max Shard Length", strconv.Itoa(meta.MaxShardLength))

			if n, known := meta.LengthKnown(); known {
				complete, err := seq.AllPresent()
				if err != nil {
					return err
				}
				s.Field("Length", strconv.Itoa(n))
				s.Field("Shards", strconv.Itoa((n+meta.MaxShardLength-1)/meta.MaxShardLength))
				s.Field("Complete", strconv.FormatBool(complete))
			} else {
				s.Field("Length", "unknown")
			}

			if size, err := dirSize(root); err == nil {
				s.Field("Size On Disk", units.BytesSize(float64(size)))
			}
			if len(meta.Info) > 0 {
				s.Section("Info")
				s.Field("Raw", string(meta.Info))
			}
			fmt.Print(s.String())

			if viper.GetBool("metrics") {
				fmt.Println()
				metrics.WritePrometheus(os.Stdout, false)
			}
			return nil
		},
	}
	GetCmd = &cobra.Command{
		Use:   "get [index...]",
		Short: "Prints the items at the given indices (negative indices count from the end)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices := make([]int, len(args))
			for k, arg := range args {
				idx, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("index must be a number: %w", err)
				}
				indices[k] = idx
			}

			seq, _, err := openSequence()
			if err != nil {
				return err
			}
			defer seq.Close()

			for _, idx := range indices {
				item, err := seq.Get(idx)
				if errors.Is(err, common.ErrOutOfRange) {
					fmt.Printf("%d: out of range\n", idx)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Printf("%d: %s\n", idx, item)
			}
			return nil
		},
	}
)

func init() {
	key := "metrics"
	InfoCmd.Flags().Bool(key, false, "Also print the process metrics in Prometheus format")
}

// dirSize sums the sizes of all regular files in the shard directory and meta.json
func dirSize(root string) (int64, error) {
	var total int64
	entries, err := os.ReadDir(filepath.Join(root, "shards"))
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	if info, err := os.Stat(filepath.Join(root, "meta.json")); err == nil {
		total += info.Size()
	}
	return total, nil
}
