// Command healthreview serves the client-health review API and runs the
// presenter-mode review in a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "healthreview",
	Short: "Weekly client-health review: API server and presenter",
	Long: `healthreview keeps weekly green/amber/red client health reports and
walks a manager-by-manager review of them in presenter mode.

Configuration is layered: built-in defaults, then the YAML file named by
--config or HEALTHREVIEW_CONFIG, then HEALTHREVIEW_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("HEALTHREVIEW_CONFIG", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or set HEALTHREVIEW_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(presentCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
