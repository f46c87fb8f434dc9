package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON    bool
		showSteps bool
	)
	cmd := &cobra.Command{
		Use:   "check [text...]",
		Short: "Extract the main claim from text and fact-check it",
		Long: `Check runs the full pipeline: it extracts the main claim, lets the research
agent search the web for evidence and prints a 0-10 score with comments.

Text is taken from the arguments, or from stdin when none are given.

Example:
  factcheck check "The Eiffel Tower is in Berlin."
  echo "Water boils at 100C at sea level." | factcheck check --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pipeline, release, err := opts.factory(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			if showSteps {
				ctx = agents.WithObserver(ctx, agents.ObserverFuncs{
					OnStep: func(step models.AgentStep) {
						fmt.Fprintf(cmd.ErrOrStderr(), "step %d: %s %s\n", step.Index, step.Kind, describeStep(step))
					},
				})
			}

			result, err := pipeline.Check(ctx, text)
			if errors.Is(err, services.ErrNoClaim) {
				if asJSON {
					return writeJSON(out, models.MessageResponse{Message: models.NoClaimsFound})
				}
				fmt.Fprintln(out, models.NoClaimsFound)
				return nil
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, models.FactCheckResponse{Res: result.Verification.Verdict})
			}
			fmt.Fprintf(out, "Claim:    %s\n", result.Claim.Claim)
			fmt.Fprintf(out, "Score:    %d/10\n", result.Verification.Verdict.Score)
			fmt.Fprintf(out, "Comments: %s\n", result.Verification.Verdict.Comments)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body instead of text")
	cmd.Flags().BoolVar(&showSteps, "steps", false, "print agent steps to stderr as they happen")
	return cmd
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text...]",
		Short: "Print the main claim found in text without checking it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			pipeline, release, err := opts.factory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()

			claim, err := pipeline.Extract(cmd.Context(), text)
			if errors.Is(err, services.ErrNoClaim) {
				fmt.Fprintln(cmd.OutOrStdout(), models.NoClaimsFound)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), claim.Claim)
			return nil
		},
	}
}

func describeStep(step models.AgentStep) string {
	if step.Kind == models.StepFinalAnswer {
		return ""
	}
	if step.ToolError {
		return fmt.Sprintf("%s(%q) failed", step.Tool, step.Input)
	}
	return fmt.Sprintf("%s(%q)", step.Tool, step.Input)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
