package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "davidrt",
	Short: "davidrt submits tasks to a simulated NPU device.",
	Long: `davidrt submits tasks to a simulated NPU device through the ` +
		`stream engine. It can run plain task streams, capture a task ` +
		`graph and replay it, and exercise the AICPU queue-event protocol.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("env", []string{".env"},
		"Env files to load the configuration from.")
	flags.String("record", "",
		"Record task tracks into the given SQLite database.")
	flags.Bool("monitor", false, "Serve the web monitor while running.")
	flags.Int("monitor-port", 0, "Port of the web monitor.")
	flags.Bool("open-monitor", false, "Open the web monitor in a browser.")
	flags.Bool("log-hooks", false, "Log every stream hook at debug level.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Registered exit handlers run before the process exits.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
