package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func readWorkflowFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse workflow JSON: %w", err)
	}
	return payload, nil
}

func newStoreTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "store-trigger <workflow.json>",
		Short: "Store a workflow payload for later trigger calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readWorkflowFile(args[0])
			if err != nil {
				return err
			}
			code, body, err := ctx.postJSON(cmd.Context(), "/store/trigger", map[string]any{"prompt": payload})
			if err != nil {
				return err
			}
			if code != 200 {
				return fmt.Errorf("bridge rejected payload (%d): %s", code, strings.TrimSpace(string(body)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Trigger payload stored.")
			return nil
		},
	}
}

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var workflowPath string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Submit the stored (or given) workflow to the generation host",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if workflowPath != "" {
				loaded, err := readWorkflowFile(workflowPath)
				if err != nil {
					return err
				}
				payload["prompt"] = loaded
			}

			code, body, err := ctx.postJSON(cmd.Context(), "/trigger", payload)
			if err != nil {
				return err
			}
			if code != 200 {
				return fmt.Errorf("trigger failed (%d): %s", code, strings.TrimSpace(string(body)))
			}

			var response struct {
				PromptID string `json:"prompt_id"`
			}
			out := cmd.OutOrStdout()
			if err := json.Unmarshal(body, &response); err == nil && response.PromptID != "" {
				fmt.Fprintf(out, "Queued as prompt %s.\n", response.PromptID)
				return nil
			}
			fmt.Fprintln(out, "Triggered.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&workflowPath, "workflow", "w", "", "Workflow JSON to submit instead of the stored payload")
	return cmd
}
