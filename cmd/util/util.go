package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ValentinKolb/loadit/lib/codec"
	"github.com/ValentinKolb/loadit/lib/common"
	"github.com/ValentinKolb/loadit/lib/loadit"
	"github.com/ValentinKolb/loadit/lib/source"
	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupDatasetFlags adds the flags describing a dataset to a command
func SetupDatasetFlags(cmd *cobra.Command) {
	key := "root-dir"
	cmd.PersistentFlags().String(key, "", WrapString("Directory of the shard store (required)"))

	key = "source"
	cmd.PersistentFlags().String(key, "", WrapString("Text file whose lines are the items of the dataset. May be omitted if every needed shard exists"))

	key = "max-shard-length"
	cmd.PersistentFlags().Int(key, 0, WrapString("Number of items per shard. Only used when the store is created"))

	key = "max-shard-size"
	cmd.PersistentFlags().String(key, "", WrapString("Byte budget per shard (e.g. 64mb), converted to a shard length by sampling the source. Mutually exclusive with max-shard-length"))

	key = "workers"
	cmd.PersistentFlags().Int(key, 1, WrapString("Number of concurrent writers; values above 1 enable prefetching"))

	key = "cache-size"
	cmd.PersistentFlags().Int(key, 128, WrapString("Number of shards kept in memory"))

	key = "memory-limit"
	cmd.PersistentFlags().String(key, "", WrapString("Byte bound of the stores internal shard cache (e.g. 256mb, empty = disabled)"))

	key = "compression"
	cmd.PersistentFlags().String(key, codec.CompressionNone, WrapString("Compression of new stores (none, zstd, snappy, lz4)"))

	key = "codec"
	cmd.PersistentFlags().String(key, "binary", WrapString("Codec of the items (binary, json, gob)"))

	key = "length"
	cmd.PersistentFlags().Int(key, 0, WrapString("Known number of items, skips length discovery (0 = unknown)"))

	key = "mode"
	cmd.PersistentFlags().String(key, "0644", WrapString("Permission bits of created files (octal)"))
}

// InitConfig loads .env files and binds LOADIT_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("loadit")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging applies the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetCodec creates the item codec based on configuration
func GetCodec() (codec.Codec[[]byte], error) {
	switch viper.GetString("codec") {
	case "binary":
		return codec.NewBinaryCodec(), nil
	case "json":
		return codec.NewJSONCodec[[]byte](), nil
	case "gob":
		return codec.NewGOBCodec[[]byte](), nil
	default:
		return nil, fmt.Errorf("invalid codec %s", viper.GetString("codec"))
	}
}

// GetOptions reads the dataset options from viper
func GetOptions() (loadit.Options[[]byte], error) {
	c, err := GetCodec()
	if err != nil {
		return loadit.Options[[]byte]{}, err
	}

	opts := loadit.DefaultOptions[[]byte](viper.GetString("root-dir"), nil)
	if path := viper.GetString("source"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return opts, fmt.Errorf("invalid source: %w", err)
		}
		opts.Source = source.FromLines(path)
	}

	opts.Codec = c
	opts.MaxShardLength = viper.GetInt("max-shard-length")
	opts.MaxShardSize = viper.GetString("max-shard-size")
	opts.MaxWorkers = viper.GetInt("workers")
	opts.MaxCacheSize = viper.GetInt("cache-size")
	opts.Compression = viper.GetString("compression")
	opts.Length = viper.GetInt("length")

	// every worker opens the file on its own
	opts.IteratorThreadSafe = true

	if limit := viper.GetString("memory-limit"); limit != "" {
		if opts.MemoryLimit, err = units.RAMInBytes(limit); err != nil {
			return opts, fmt.Errorf("invalid memory limit %q: %w", limit, err)
		}
	}

	mode, err := strconv.ParseUint(viper.GetString("mode"), 8, 32)
	if err != nil {
		return opts, fmt.Errorf("invalid mode %q: %w", viper.GetString("mode"), err)
	}
	opts.Mode = os.FileMode(mode)

	return opts, nil
}
