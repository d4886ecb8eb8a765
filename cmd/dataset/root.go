package dataset

import (
	"fmt"

	"github.com/ValentinKolb/loadit/cmd/util"
	"github.com/ValentinKolb/loadit/lib/loadit"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	for _, cmd := range []*cobra.Command{BuildCmd, InfoCmd, GetCmd, ScanCmd} {
		util.SetupDatasetFlags(cmd)
	}
}

// openSequence creates the lazy sequence described by the flags of the current command
func openSequence() (*loadit.LazySequence[[]byte], loadit.Options[[]byte], error) {
	if viper.GetString("root-dir") == "" {
		return nil, loadit.Options[[]byte]{}, fmt.Errorf("--root-dir is required")
	}

	opts, err := util.GetOptions()
	if err != nil {
		return nil, opts, err
	}

	seq, err := loadit.New(opts)
	if err != nil {
		return nil, opts, fmt.Errorf("failed to open %s: %w", opts.RootDir, err)
	}
	return seq, opts, nil
}
