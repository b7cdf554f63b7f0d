package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"hirmir/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "hirmirc",
	Short: "HIR to MIR lowering driver",
	Long:  `hirmirc lowers typed HIR fixtures into validated MIR control-flow graphs`,
}

// main configures the root CLI command and executes it, exiting with
// status 1 if execution fails.
func main() {
	rootCmd.Version = version.VersionString()

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a TTY.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled resolves the --color tri-state against the actual output.
func colorEnabled(mode string, out *os.File) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(out)
	}
}
