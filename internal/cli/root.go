// Package cli implements the bugx command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bugx/internal/config"
	"bugx/internal/docs"
	"bugx/internal/logging"
	"bugx/internal/patterns"
	"bugx/internal/workflow"
)

// Output formats
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

const defaultServer = "http://localhost:8080"

// CLI represents the command-line interface
type CLI struct {
	RootCmd *cobra.Command

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	outputFormat string
	noColor      bool
	verbose      bool
	configFile   string
	serverURL    string

	cfg          *config.Config
	orchestrator *workflow.Orchestrator
	printer      *printer
}

// Option customises a CLI
type Option func(*CLI)

// WithIO replaces stdin, stdout and stderr
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.in, c.out, c.errOut = in, out, errOut
	}
}

// WithOrchestrator makes commands run against orchestrator instead of one
// built from the configuration
func WithOrchestrator(orchestrator *workflow.Orchestrator) Option {
	return func(c *CLI) { c.orchestrator = orchestrator }
}

// NewCLI creates the CLI with every command registered
func NewCLI(opts ...Option) *CLI {
	c := &CLI{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}

	c.RootCmd = &cobra.Command{
		Use:   "bugx",
		Short: "BugX debugging toolkit",
		Long: `bugx recognises known error patterns, detects anti-patterns in your code,
picks a fix template and walks you through the fix.

Run a full workflow on an error:
  bugx quickfix -m "Hydration failed because..." --code-file UserProfile.tsx`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	c.RootCmd.SetIn(c.in)
	c.RootCmd.SetOut(c.out)
	c.RootCmd.SetErr(c.errOut)

	flags := c.RootCmd.PersistentFlags()
	flags.StringVarP(&c.outputFormat, "output", "o", OutputTable, "Output format (table, json)")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Log workflow progress to stderr")
	flags.StringVar(&c.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&c.serverURL, "server", envOr("BUGX_SERVER_URL", defaultServer), "BugX server for remote commands")

	c.RootCmd.AddCommand(
		c.createQuickFixCommand(),
		c.createAnalyzeCommand(),
		c.createTemplatesCommand(),
		c.createSetupCommand(),
		c.createMetricsCommand(),
		c.createHealthCommand(),
		c.createREPLCommand(),
		c.createVersionCommand(),
	)
	return c
}

// Execute runs the root command
func (c *CLI) Execute() error {
	if err := c.RootCmd.Execute(); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(c.errOut, "Error: %v\n", err)
		return err
	}
	return nil
}

func (c *CLI) setup(*cobra.Command, []string) error {
	switch c.outputFormat {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("unsupported output format %q (want table or json)", c.outputFormat)
	}
	if c.noColor {
		color.NoColor = true
	}
	c.printer = newPrinter(c.out, c.errOut)

	if c.configFile != "" {
		if err := os.Setenv("BUGX_CONFIG_FILE", c.configFile); err != nil {
			return err
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// toolkit returns the orchestrator, building it on first use
func (c *CLI) toolkit() (*workflow.Orchestrator, error) {
	if c.orchestrator != nil {
		return c.orchestrator, nil
	}

	logger := logging.NewNoOpLogger()
	if c.verbose {
		logger = logging.NewStderrLogger(logging.DEBUG, false)
	}

	library := patterns.BuiltinLibrary()
	if c.cfg.Patterns.LibraryFile != "" {
		extended, err := patterns.LoadLibraryFile(library, c.cfg.Patterns.LibraryFile)
		if err != nil {
			return nil, err
		}
		library = extended
	}

	c.orchestrator = workflow.NewOrchestrator(
		workflow.WithLogger(logger),
		workflow.WithConfig(c.cfg.Workflow),
		workflow.WithPatternEngine(patterns.NewEngine(library,
			patterns.WithMinConfidence(c.cfg.Patterns.MinConfidence),
			patterns.WithLogger(logger))),
	)
	return c.orchestrator, nil
}

func (c *CLI) createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bugx version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if c.outputFormat == OutputJSON {
				return c.printer.json(map[string]string{"version": docs.APIVersion})
			}
			c.printer.linef("bugx %s", docs.APIVersion)
			return nil
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
