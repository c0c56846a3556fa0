package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/minutespa/minutespa/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┬┌┐┌┬ ┬┌┬┐┌─┐┌─┐┌─┐┌─┐
  ││││││││ │ │ ├┤ └─┐├─┘├─┤
  ┴ ┴┴┘└┘└─┘ ┴ └─┘└─┘┴  ┴ ┴
`

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	medium     string
	store      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "minutespa",
		Short: "Keyed app state with persistence, served and inspected from the shell",
		Long: `minutespa manages keyed application state stores.

Each store is a set of keys with subscribers. Values written with
--persist go through to the configured medium (memory, sqlite, s3
or a remote minutespa server) so they survive restarts.

  • Inspect and edit persisted state
  • Serve state over HTTP and websocket
  • Prometheus metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (default: minutespa.json or minutespa.yaml in the project)")
	rootCmd.PersistentFlags().StringVarP(&flags.medium, "medium", "m", "", "Override the persistent medium (none, memory, sqlite, s3, remote)")
	rootCmd.PersistentFlags().StringVar(&flags.store, "store", "", "Store id (default from config)")

	rootCmd.AddCommand(
		serveCmd(&flags),
		stateCmd(&flags),
		configCmd(&flags),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
