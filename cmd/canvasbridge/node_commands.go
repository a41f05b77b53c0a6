package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"canvasbridge/internal/logging"
	"canvasbridge/internal/node"
)

func newPushInputCommand(ctx *commandContext) *cobra.Command {
	var prompt, negative string
	var strength float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "push-input <image-file>",
		Short: "Upload a canvas image and prompt bundle to the bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			var body bytes.Buffer
			writer := multipart.NewWriter(&body)
			part, err := writer.CreateFormFile("file", "input.png")
			if err != nil {
				return err
			}
			if _, err := part.Write(data); err != nil {
				return err
			}
			fields := map[string]string{
				"prompt":   prompt,
				"negative": negative,
				"strength": strconv.FormatFloat(strength, 'f', -1, 64),
				"seed":     strconv.FormatInt(seed, 10),
			}
			for name, value := range fields {
				if err := writer.WriteField(name, value); err != nil {
					return err
				}
			}
			if err := writer.Close(); err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, ctx.bridgeURL()+"/push/input", &body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", writer.FormDataContentType())
			resp, err := ctx.httpClient.Do(req)
			if err != nil {
				return wrapBridgeError(err, ctx.bridgeURL())
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("bridge rejected input (%d): %s", resp.StatusCode, detail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d bytes.\n", len(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Positive prompt text")
	cmd.Flags().StringVar(&negative, "negative", "", "Negative prompt text")
	cmd.Flags().Float64Var(&strength, "strength", 1.0, "Denoise strength in [0,1]")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampler seed")
	return cmd
}

func newPullCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var timeout time.Duration
	var outPath string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch the current input image and prompt like a producer node",
		RunE: func(cmd *cobra.Command, args []string) error {
			producer := node.NewProducer(ctx.bridgeURL(), logging.NewNop())
			result, err := producer.Pull(cmd.Context(), node.PullOptions{Wait: wait, Timeout: timeout})
			if err != nil {
				return err
			}

			encoded, err := result.Tensor.EncodePNG()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPairs("Pulled", [][2]string{
				{"Image", fmt.Sprintf("%dx%d -> %s", result.Tensor.Width, result.Tensor.Height, outPath)},
				{"Placeholder", yesNo(result.Placeholder)},
				{"Prompt", result.Prompt},
				{"Negative", result.Negative},
				{"Strength", strconv.FormatFloat(result.Strength, 'f', -1, 64)},
				{"Seed", strconv.FormatInt(result.Seed, 10)},
			}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Long-poll until an image arrives or the timeout elapses")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Overall pull deadline")
	cmd.Flags().StringVarP(&outPath, "out", "o", "input.png", "Where to write the pulled image")
	return cmd
}

func newPushOutputCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push-output <image-file>",
		Short: "Publish a rendered result to the bridge like a consumer node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			consumer := node.NewConsumer(ctx.bridgeURL(), logging.NewNop())
			if err := consumer.Push(cmd.Context(), nil, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d bytes.\n", len(data))
			return nil
		},
	}
	return cmd
}
