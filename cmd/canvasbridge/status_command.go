package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"canvasbridge/internal/events"
)

type statusResponse struct {
	OK              bool    `json:"ok"`
	URL             string  `json:"url"`
	FrontendDir     string  `json:"frontend_dir"`
	HasInput        bool    `json:"has_input"`
	HasOutput       bool    `json:"has_output"`
	HasTrigger      bool    `json:"has_trigger"`
	GenerateCounter int64   `json:"generate_counter"`
	Timestamp       float64 `json:"ts"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var eventLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show bridge state and session counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var status statusResponse
			if err := ctx.getJSON(cmd.Context(), "/status", &status); err != nil {
				fmt.Fprintln(out, renderBanner(false, ctx.bridgeURL(), colorize))
				return err
			}

			fmt.Fprintln(out, renderBanner(true, status.URL, colorize))
			fmt.Fprintln(out, renderPairs("Session", [][2]string{
				{"Input image", yesNo(status.HasInput)},
				{"Output image", yesNo(status.HasOutput)},
				{"Stored trigger", yesNo(status.HasTrigger)},
				{"Generate counter", strconv.FormatInt(status.GenerateCounter, 10)},
				{"Frontend dir", status.FrontendDir},
				{"Reported at", time.Unix(int64(status.Timestamp), 0).Format("2006-01-02 15:04:05")},
			}))

			if eventLimit > 0 {
				return printRecentEvents(cmd, ctx, eventLimit, colorize)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&eventLimit, "events", 0, "Also show the N most recent archived debug events")
	return cmd
}

func printRecentEvents(cmd *cobra.Command, ctx *commandContext, limit int, colorize bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	archive, err := events.Open(cfg.EventDBPath())
	if err != nil {
		return fmt.Errorf("open event archive: %w", err)
	}
	defer archive.Close() //nolint:errcheck

	recent, err := archive.Recent(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("read event archive: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderHeading("Recent debug events", colorize))
	if len(recent) == 0 {
		fmt.Fprintln(out, "  (none recorded)")
		return nil
	}

	rows := make([][]string, 0, len(recent))
	for _, ev := range recent {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			payload = []byte("{}")
		}
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			ev.ReceivedAt.Format("2006-01-02 15:04:05"),
			ev.Type,
			string(payload),
		})
	}
	fmt.Fprintln(out, renderEvents(rows))
	return nil
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Print the canvas URL served by the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload struct {
				URL string `json:"url"`
			}
			if err := ctx.getJSON(cmd.Context(), "/open", &payload); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload.URL)
			return nil
		},
	}
}

func newShutdownCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask the running bridge daemon to exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _, err := ctx.postJSON(cmd.Context(), "/shutdown", map[string]any{})
			if err != nil {
				return err
			}
			if code != 200 {
				return fmt.Errorf("shutdown request returned %d", code)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Shutdown requested.")
			return nil
		},
	}
}
