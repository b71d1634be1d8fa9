package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bindCmd)
}

var bindCmd = &cobra.Command{
	Use:   "bind [config-path]",
	Short: "Binds to the gateway and logs inbound messages until interrupted",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		cfg.args = args

		cfg.startProfiler().
			startLogger().
			readConfig().
			startMetrics().
			bindSession().
			waitOsSignals().
			unbindSession()
	},
}
