package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/config"
	"github.com/snappy-loop/factcheck/internal/models"
	"github.com/snappy-loop/factcheck/internal/services"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// Pipeline is the part of the fact-check service the CLI drives.
type Pipeline interface {
	Check(ctx context.Context, text string) (*models.FactCheckResult, error)
	Extract(ctx context.Context, text string) (*models.Claim, error)
}

// PipelineFactory builds a Pipeline from configuration. The returned func releases it.
type PipelineFactory func(ctx context.Context, cfg *config.Config) (Pipeline, func(), error)

func buildPipeline(ctx context.Context, cfg *config.Config) (Pipeline, func(), error) {
	svc, client, err := services.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { client.Close() }, nil
}

type rootOptions struct {
	cfgFile string
	verbose bool
	factory PipelineFactory
}

// loadConfig honours --config by pointing FACTCHECK_CONFIG at it before loading.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.cfgFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, o.cfgFile); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// NewRootCmd returns the factcheck command tree. A nil factory uses the Gemini pipeline.
func NewRootCmd(factory PipelineFactory) *cobra.Command {
	if factory == nil {
		factory = buildPipeline
	}
	opts := &rootOptions{factory: factory}

	root := &cobra.Command{
		Use:   "factcheck",
		Short: "Fact-check claims from the command line",
		Long: `factcheck extracts the main checkable claim from a piece of text, researches it
with web search and scores how likely it is to be true on a 0-10 scale.

Configuration comes from environment variables (GEMINI_API_KEY, TAVILY_API_KEY, ...)
and, optionally, a YAML file given with --config or FACTCHECK_CONFIG.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (overrides FACTCHECK_CONFIG)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newCheckCmd(opts),
		newExtractCmd(opts),
		newConfigCmd(opts),
		newHashKeyCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "factcheck %s\n", Version)
			},
		},
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd(nil).Execute()
}

func setupLogging(w io.Writer, verbose bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	zerolog.DefaultContextLogger = &log.Logger
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// inputText joins args, or reads stdin when there are none or the only arg is "-".
func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
