package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/loadit/cmd/dataset"
	"github.com/ValentinKolb/loadit/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "loadit",
		Short: "lazy, disk-backed random access over sequential data",
		Long: fmt.Sprintf(`loadit (v%s)

Turns a forward-only source (such as the lines of a large file) into a
random-access sequence. Items are written to disk in fixed-size shards the
first time they are needed and served from there afterwards.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of loadit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loadit v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(dataset.BuildCmd)
	RootCmd.AddCommand(dataset.InfoCmd)
	RootCmd.AddCommand(dataset.GetCmd)
	RootCmd.AddCommand(dataset.ScanCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("Log level (debug, info, warn, error)"))
}

// setup binds the flags of the executed command and configures logging
func setup(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return util.InitLogging()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
