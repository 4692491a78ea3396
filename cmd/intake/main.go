// Command intake runs a voice-intake session on the console: each line typed is
// one utterance, and prompts are printed with their speech locale.
//
//	go run ./cmd/intake run --lang hi
//	go run ./cmd/intake track TRK20240115-AB12CD34
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"voice-intake/internal/bootstrap"
	"voice-intake/internal/shared/config"
	"voice-intake/internal/shared/telemetry"
)

var (
	languageHint string
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:           "intake",
	Short:         "Conversational intake for legal documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	runCmd.Flags().StringVar(&languageHint, "lang", "", "Language hint for the first utterance (en, hi, ta, ...)")
	rootCmd.AddCommand(runCmd, trackCmd, formsCmd)
}

// buildApp loads config and wires dependencies. Logs go to stderr so they do not
// interleave with the conversation on stdout.
func buildApp() (*bootstrap.App, error) {
	cfg := config.Load()
	telemetry.SetOutput(os.Stderr, cfg.LogLevel)
	return bootstrap.Build(cfg)
}

func printResult(w io.Writer, v any, text string) {
	if !jsonOutput {
		fmt.Fprintln(w, text)
		return
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
