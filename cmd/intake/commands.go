package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"voice-intake/internal/dialogue"
	"voice-intake/internal/speech"
)

const greeting = "Please tell me which document you need and any details you already know."

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a console intake session and submit it when complete",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		if app.DB != nil {
			defer app.DB.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		console := speech.NewConsole(cmd.InOrStdin(), out)
		defer console.Close()
		o := app.Registry.Create(languageHint)

		if err := dialogue.Greet(ctx, console, greeting, "en"); err != nil {
			return err
		}
		snap, err := dialogue.Run(ctx, o, console)
		if err != nil {
			return fmt.Errorf("session %s ended in %s: %w", snap.ID, snap.Status, err)
		}

		receipt, err := app.Submissions.Submit(context.WithoutCancel(ctx), snap)
		if err != nil {
			return err
		}
		text := "Tracking ID: " + receipt.TrackingID
		if !receipt.Authoritative {
			text += " (provisional)"
		}
		printResult(out, receipt, text)
		return nil
	},
}

var trackCmd = &cobra.Command{
	Use:   "track <tracking-id>",
	Short: "Show a recorded submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		if app.DB != nil {
			defer app.DB.Close()
		}
		sub, err := app.Submissions.Track(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s  %s  %s\n", sub.TrackingID, sub.DocumentType, sub.SubmittedAt.Format("2006-01-02 15:04"))
		keys := make([]string, 0, len(sub.FieldValues))
		for k := range sub.FieldValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, sub.FieldValues[k])
		}
		printResult(cmd.OutOrStdout(), sub, strings.TrimRight(b.String(), "\n"))
		return nil
	},
}

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "List supported documents and their required fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		if app.DB != nil {
			defer app.DB.Close()
		}
		docs := app.Catalog.List()
		var b strings.Builder
		for _, d := range docs {
			fmt.Fprintf(&b, "%s  %s\n    required: %s\n", d.ID, d.Title, strings.Join(d.RequiredFields(), ", "))
		}
		printResult(cmd.OutOrStdout(), docs, strings.TrimRight(b.String(), "\n"))
		return nil
	},
}
