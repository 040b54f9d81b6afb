package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"parley/langdetect"
	"parley/recording"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conferences, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			confs, err := svc.Conferences(cmd.Context())
			if err != nil {
				return err
			}
			if len(confs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conferences recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(confs))
			for _, c := range confs {
				rows = append(rows, []string{
					c.ID,
					c.Date,
					c.Duration,
					langdetect.DisplayName(c.Language),
					truncate(c.Summary, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRows(
				[]string{"ID", "Date", "Duration", "Language", "Summary"}, rows))
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conference-id>",
		Short: "Show one conference in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			conf, err := svc.Conference(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conference: %s\n", conf.ID)
			fmt.Fprintf(out, "Date:       %s\n", conf.Date)
			fmt.Fprintf(out, "Duration:   %s\n", conf.Duration)
			fmt.Fprintf(out, "Language:   %s\n", langdetect.DisplayName(conf.Language))
			fmt.Fprintf(out, "\n%s\n", conf.Summary)
			if conf.Translated != "" {
				fmt.Fprintf(out, "\nTranslation (%s):\n%s\n",
					langdetect.DisplayName(conf.TranslatedLang), conf.Translated)
			}
			return nil
		},
	}
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "translate <conference-id>",
		Short: "Translate a conference summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			result, err := svc.Translate(cmd.Context(), args[0], target)
			if errors.Is(err, recording.ErrTranslatePending) {
				fmt.Fprintln(cmd.OutOrStdout(), "A translation for this conference is already in progress.")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.CacheHit {
				fmt.Fprintf(out, "Translation to %s (cached):\n\n", langdetect.DisplayName(result.TargetLang))
			} else {
				fmt.Fprintf(out, "Translation to %s:\n\n", langdetect.DisplayName(result.TargetLang))
			}
			fmt.Fprintln(out, result.Text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Target language code (default chosen from config)")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <conference-id>",
		Short: "Delete a stored conference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete conference %s? [y/N] ", args[0])
				reply, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				reply = strings.ToLower(strings.TrimSpace(reply))
				if reply != "y" && reply != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted conference %s.\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play <conference-id>",
		Short: "Play back a stored recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := svc.Play(sigCtx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playing. Press Ctrl-C to stop.")

			done := make(chan struct{})
			go func() {
				svc.Player().Wait()
				close(done)
			}()
			select {
			case <-sigCtx.Done():
				svc.Controller().StopPlayback(args[0])
			case <-done:
			}
			return nil
		},
	}
}
