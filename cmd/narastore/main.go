package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "narastore",
	Short: "Upload government RFPs for analysis and track the proposal work",
	Long: `narastore accepts RFP documents, sends them to the analysis backend and keeps
the resulting summaries, to-do lists and staffing roster in a local store.

Run "narastore serve" to start the API, then use the other commands against it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(rfpsCmd)
	rootCmd.AddCommand(todosCmd)
	rootCmd.AddCommand(personnelCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		fmt.Fprintln(os.Stderr, "run 'narastore --help' for usage")
		os.Exit(1)
	}
}
