// Package cmd provides the command-line interface for Torii.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "torii",
	Short: "Torii runs the timing core of the emulator from the command line.",
	Long: `Torii runs the timing core of the emulator from the command line. ` +
		`It can drive a scripted machine for a stretch of virtual time, ` +
		`record sync-point traces to SQLite, and expose the device state ` +
		`over an inspection web server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env file can preset any flag through TORII_* variables.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func init() {
	cobra.OnInitialize(func() {
		if prefix := os.Getenv("TORII_TRACE"); prefix != "" {
			tracePath = prefix
		}
	})
}
