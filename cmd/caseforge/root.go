// caseforge is the batch triage CLI: run executes one pipeline pass over
// the configured sensor logs, serve exposes the pipeline over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "caseforge",
	Short: "Batch triage pipeline for Zeek and Suricata telemetry",
	Long: "CaseForge normalizes Zeek and Suricata logs, runs baseline detectors\n" +
		"for scanning and DNS beaconing, and assembles validated, evidence-backed\n" +
		"cases with analyst-ready reports.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
