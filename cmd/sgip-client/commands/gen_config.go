package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skycoin/sgip/pkg/client"
	"github.com/skycoin/sgip/pkg/util/pathutil"
)

var (
	output        string
	replace       bool
	configLocType = pathutil.WorkingDirLoc
)

func init() {
	genConfigCmd.Flags().StringVarP(&output, "output", "o", "", "path of output config file. Uses default of 'type' flag if unspecified. A .yaml or .yml extension writes YAML.")
	genConfigCmd.Flags().BoolVarP(&replace, "replace", "r", false, "whether to allow rewrite of a file that already exists.")
	genConfigCmd.Flags().VarP(&configLocType, "type", "m", fmt.Sprintf("config generation mode. Valid values: %v", pathutil.AllConfigLocationTypes()))
	rootCmd.AddCommand(genConfigCmd)
}

var genConfigCmd = &cobra.Command{
	Use:   "gen-config",
	Short: "Generates a config file",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if output == "" {
			path, ok := pathutil.ClientDefaults().Get(configLocType)
			if !ok {
				return errors.Errorf("no default path for config type %s", configLocType)
			}
			output = path
		}
		var err error
		output, err = filepath.Abs(output)
		return errors.Wrap(err, "invalid output provided")
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return pathutil.WriteConfig(client.DefaultConfig(), output, replace)
	},
}
