package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a conference and submit it for transcription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.ensureService()
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := svc.StartRecording(sigCtx, language); err != nil {
				return fmt.Errorf("start recording: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Recording. Press Enter or Ctrl-C to stop and submit.")

			enter := make(chan struct{})
			go func() {
				buf := bufio.NewReader(cmd.InOrStdin())
				_, _ = buf.ReadString('\n')
				close(enter)
			}()
			select {
			case <-sigCtx.Done():
			case <-enter:
			}
			stop()

			// The signal context is spent; submission gets a fresh one so
			// the finalize upload is not cancelled by the very interrupt
			// that requested it.
			conf, err := svc.StopRecording(context.Background())
			if err != nil {
				return fmt.Errorf("submit recording: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nConference %s recorded (%s).\n\n", conf.ID, conf.Duration)
			fmt.Fprintln(out, conf.Summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Parent language code (default from config)")
	return cmd
}
