// ABOUTME: CLI command for natural-language insights from an advisor.
// ABOUTME: Builds a health overview or question prompt and sends it to a chat endpoint.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/config"
	"github.com/harperreed/vitalsync/internal/insight"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/spf13/cobra"
)

var (
	askPrintPrompt bool
	askContext     string
	askMetrics     []string
	askChat        bool
)

// promptOptions narrows what goes into an advisor prompt.
type promptOptions struct {
	// activity replaces the context of the newest reading when set.
	activity models.Context
	// metrics limits the prompt to these metrics when non-empty.
	metrics []string
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask an advisor about your vitals",
	Long: `Without a question, compare the current values against the resting
baselines and ask for a short health overview. With a question, send the
last 20 readings of each metric along with it.

The advisor is any OpenAI-compatible chat completions endpoint, set with
advisor_url and advisor_model in the config file or VITALSYNC_ADVISOR_URL
and VITALSYNC_ADVISOR_MODEL.

Use --chat to keep the conversation going: each line read from stdin is
sent as a follow-up with the earlier turns attached. An empty line or
"exit" ends the session.

EXAMPLES:

  vitalsync ask                                   # Health overview
  vitalsync ask "Why did my heart rate spike?"    # Free-form question
  vitalsync ask --print-prompt                    # Show the prompt only
  vitalsync ask --context running                 # Judge against running
  vitalsync ask -m Heart_Rate,Body_Temperature    # Only these metrics
  vitalsync ask --chat                            # Follow-up questions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc := query.NewService(store)

		opts := promptOptions{metrics: askMetrics}
		if askContext != "" {
			activity, err := models.ParseContext(askContext)
			if err != nil {
				return err
			}
			opts.activity = activity
		}

		prompt, err := buildPrompt(ctx, svc, strings.Join(args, " "), opts)
		if err != nil {
			return err
		}
		if askPrintPrompt {
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		}

		advisor, err := insight.NewChatAdvisor(insight.AdvisorConfig{
			BaseURL:     cfg.AdvisorURL,
			Model:       cfg.AdvisorModel,
			APIKey:      cfg.AdvisorAPIKey,
			KeepHistory: askChat,
		})
		if errors.Is(err, insight.ErrNoAdvisor) {
			return fmt.Errorf("%w: set advisor_url in %s or VITALSYNC_ADVISOR_URL", err, configPathForDisplay())
		}
		if err != nil {
			return err
		}

		reply, err := advisor.Generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("advisor request failed: %w", err)
		}
		color.Cyan(reply)
		if !askChat {
			return nil
		}
		return chat(ctx, cmd, advisor)
	},
}

// chat sends each stdin line as a follow-up until an empty line, "exit", or EOF.
func chat(ctx context.Context, cmd *cobra.Command, advisor *insight.ChatAdvisor) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "exit" {
			return nil
		}
		reply, err := advisor.Generate(ctx, line)
		if err != nil {
			return fmt.Errorf("advisor request failed: %w", err)
		}
		color.Cyan(reply)
	}
}

// buildPrompt returns the overview prompt for an empty question and the
// question prompt otherwise.
func buildPrompt(ctx context.Context, svc *query.Service, question string, opts promptOptions) (string, error) {
	stored, err := svc.Metrics(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list metrics: %w", err)
	}
	metrics, err := selectMetrics(stored, opts.metrics)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(question) != "" {
		recent := make(map[string][]models.Reading, len(metrics))
		for _, m := range metrics {
			readings, err := svc.Recent(ctx, m, insight.QuestionWindow)
			if err != nil {
				return "", fmt.Errorf("failed to get recent %s: %w", m, err)
			}
			recent[m] = readings
		}
		return insight.QuestionPrompt(recent, question)
	}

	baselines, err := svc.Baselines(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get baselines: %w", err)
	}
	latest, err := svc.Latest(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get latest: %w", err)
	}
	activity, ok := query.CurrentContext(latest)
	if !ok {
		return "", errors.New("no readings yet; run 'vitalsync produce' first")
	}
	if opts.activity != "" {
		activity = opts.activity
	}
	if len(opts.metrics) > 0 {
		kept := make(map[string]float64, len(metrics))
		for _, m := range metrics {
			if v, ok := baselines[m]; ok {
				kept[m] = v
			}
		}
		baselines = kept
	}
	return insight.HealthPrompt(baselines, query.Current(latest, metrics), activity)
}

// selectMetrics returns stored when want is empty, otherwise want in order.
// Every wanted metric must have stored readings.
func selectMetrics(stored, want []string) ([]string, error) {
	if len(want) == 0 {
		return stored, nil
	}
	known := make(map[string]bool, len(stored))
	for _, m := range stored {
		known[m] = true
	}
	selected := make([]string, 0, len(want))
	for _, m := range want {
		if !known[m] {
			return nil, fmt.Errorf("no readings for metric %q", m)
		}
		selected = append(selected, m)
	}
	return selected, nil
}

func configPathForDisplay() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.GetConfigPath()
}

func init() {
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the prompt instead of sending it")
	askCmd.Flags().StringVarP(&askContext, "context", "c", "", "activity context to judge against (default: newest reading's)")
	askCmd.Flags().StringSliceVarP(&askMetrics, "metrics", "m", nil, "only include these metrics")
	askCmd.Flags().BoolVar(&askChat, "chat", false, "read follow-up questions from stdin and keep the conversation history")
	rootCmd.AddCommand(askCmd)
}
