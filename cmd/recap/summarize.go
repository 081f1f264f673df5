package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/recap/ai"
	"github.com/hrygo/recap/ai/metrics"
	"github.com/hrygo/recap/ai/observability/logging"
	"github.com/hrygo/recap/ai/personalization"
	"github.com/hrygo/recap/ai/summary"
)

type summarizeFlags struct {
	slack        bool
	style        string
	tone         string
	focus        []string
	maxLength    string
	instructions string
	user         string
	source       string
	metrics      bool
}

var summarizeOpts summarizeFlags

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file|-]",
	Short: "Summarize a transcript or a Slack thread export",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		data, err := readInput(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}

		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())
		stack, err := ai.NewStack(cmd.Context(), ai.NewConfigFromProfile(instanceProfile), exporter, logging.Default())
		if err != nil {
			return err
		}
		defer stack.Close()

		res, err := runSummarize(cmd, stack.Orchestrator, data, &summarizeOpts)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}

		if summarizeOpts.metrics {
			text, err := exporter.ExportText()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.ErrOrStderr(), text)
		}
		return nil
	},
}

func init() {
	f := summarizeCmd.Flags()
	f.BoolVar(&summarizeOpts.slack, "slack", false, "input is a JSON array of slack messages ({user, text, ts})")
	f.StringVar(&summarizeOpts.style, "style", "", "summary style (executive, detailed, bullet, narrative, technical)")
	f.StringVar(&summarizeOpts.tone, "tone", "", "summary tone (professional, casual, friendly, direct)")
	f.StringSliceVar(&summarizeOpts.focus, "focus", nil, "focus areas, comma separated")
	f.StringVar(&summarizeOpts.maxLength, "max-length", "", "summary length (short, medium, long)")
	f.StringVar(&summarizeOpts.instructions, "instructions", "", "custom instructions, at most 500 characters")
	f.StringVar(&summarizeOpts.user, "user", "", "user id attached to logs")
	f.StringVar(&summarizeOpts.source, "source", "", "where the text came from, e.g. zoom")
	f.BoolVar(&summarizeOpts.metrics, "metrics", false, "print collected metrics to stderr after the summary")
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// settings returns nil when no personalization flag was given.
func (f *summarizeFlags) settings() *personalization.Settings {
	if f.style == "" && f.tone == "" && len(f.focus) == 0 && f.maxLength == "" && f.instructions == "" {
		return nil
	}
	return &personalization.Settings{
		Style:              f.style,
		Tone:               f.tone,
		FocusAreas:         f.focus,
		MaxLength:          f.maxLength,
		CustomInstructions: f.instructions,
	}
}

func parseSlackMessages(data []byte) ([]summary.SlackMessage, error) {
	data = bytes.TrimSpace(data)
	var messages []summary.SlackMessage
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Messages []summary.SlackMessage `json:"messages"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("parse slack export: %w", err)
		}
		messages = wrapper.Messages
	} else if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse slack export: %w", err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("slack export has no messages")
	}
	return messages, nil
}

func runSummarize(cmd *cobra.Command, s *summary.Orchestrator, data []byte, f *summarizeFlags) (*summary.Result, error) {
	if f.slack {
		messages, err := parseSlackMessages(data)
		if err != nil {
			return nil, err
		}
		return s.SummarizeSlackThread(cmd.Context(), f.user, messages, f.settings())
	}

	req := &summary.Request{
		Text:            string(data),
		UserID:          f.user,
		Personalization: f.settings(),
	}
	if src := strings.TrimSpace(f.source); src != "" {
		req.Context = &summary.Context{Source: src}
	}
	return s.Summarize(cmd.Context(), req)
}
