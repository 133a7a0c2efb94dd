package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bugx/internal/database"
	"bugx/internal/workflow"
)

// errorFlags are the inputs shared by quickfix and analyze
type errorFlags struct {
	message   string
	stack     string
	stackFile string
	codeFile  string
	fileName  string
	component string
	developer string
}

func (f *errorFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.message, "message", "m", "", "Error message (or pass it as arguments, or '-' to read stdin)")
	flags.StringVar(&f.stack, "stack", "", "Stack trace")
	flags.StringVar(&f.stackFile, "stack-file", "", "Read the stack trace from a file")
	flags.StringVar(&f.codeFile, "code-file", "", "Source file to scan for anti-patterns")
	flags.StringVar(&f.fileName, "file", "", "File name the error points at (defaults to the code file name)")
	flags.StringVar(&f.component, "component", "", "Component name")
	flags.StringVar(&f.developer, "developer", os.Getenv("USER"), "Who is debugging")
}

// request assembles a workflow request from flags, arguments and stdin
func (f *errorFlags) request(args []string, stdin io.Reader) (workflow.Request, error) {
	message := f.message
	if message == "" && len(args) > 0 {
		message = strings.Join(args, " ")
	}
	if message == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return workflow.Request{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		message = string(data)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return workflow.Request{}, errors.New("an error message is required (use --message or pass it as arguments)")
	}

	req := workflow.Request{
		Developer:    f.developer,
		ErrorMessage: message,
		StackTrace:   f.stack,
		FileName:     f.fileName,
		Component:    f.component,
	}
	if f.stackFile != "" {
		data, err := os.ReadFile(f.stackFile)
		if err != nil {
			return workflow.Request{}, fmt.Errorf("failed to read stack trace: %w", err)
		}
		req.StackTrace = string(data)
	}
	if f.codeFile != "" {
		data, err := os.ReadFile(f.codeFile)
		if err != nil {
			return workflow.Request{}, fmt.Errorf("failed to read code file: %w", err)
		}
		req.CodeContext = string(data)
		if req.FileName == "" {
			req.FileName = baseName(f.codeFile)
		}
	}
	return req, nil
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (c *CLI) createQuickFixCommand() *cobra.Command {
	var (
		input    errorFlags
		showDocs bool
	)

	cmd := &cobra.Command{
		Use:   "quickfix [error message]",
		Short: "Run the full debugging workflow on an error",
		Long: `Run the full debugging workflow: pattern recognition, anti-pattern detection,
context analysis, template matching, fix steps, quality scoring and
documentation. The command exits non-zero when the workflow fails.`,
		Example: `  bugx quickfix "TypeError: Cannot read properties of undefined (reading 'map')"
  bugx quickfix -m "Hydration failed" --code-file src/UserProfile.tsx --component UserProfile
  pnpm build 2>&1 | tail -1 | bugx quickfix -m -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := input.request(args, c.in)
			if err != nil {
				return err
			}
			toolkit, err := c.toolkit()
			if err != nil {
				return err
			}

			result, err := toolkit.QuickFix(cmd.Context(), req)
			if err != nil {
				return err
			}

			if c.outputFormat == OutputJSON {
				if err := c.printer.json(result); err != nil {
					return err
				}
			} else {
				if err := c.printer.workflowResult(result); err != nil {
					return err
				}
				if showDocs && result.DocumentationID != "" {
					for _, entry := range toolkit.Collector().Documentation() {
						if entry.ID == result.DocumentationID {
							if err := c.printer.documentation(entry.Title, entry.Markdown); err != nil {
								return err
							}
						}
					}
				}
			}

			if !result.Success {
				return fmt.Errorf("workflow failed in %s: %s", result.FailedPhase, result.Error)
			}
			return nil
		},
	}
	input.register(cmd)
	cmd.Flags().BoolVar(&showDocs, "docs", false, "Print the generated documentation")
	return cmd
}

func (c *CLI) createAnalyzeCommand() *cobra.Command {
	var input errorFlags

	cmd := &cobra.Command{
		Use:   "analyze [error message]",
		Short: "Recognise patterns and classify an error without running a workflow",
		RunE: func(_ *cobra.Command, args []string) error {
			req, err := input.request(args, c.in)
			if err != nil {
				return err
			}
			toolkit, err := c.toolkit()
			if err != nil {
				return err
			}

			found := toolkit.AnalyzePattern(req.ErrorMessage, req.StackTrace, req.CodeContext, req.FileName)
			ctxResult := toolkit.AnalyzeContext(req)
			if c.outputFormat == OutputJSON {
				return c.printer.json(map[string]interface{}{
					"pattern_analysis": found,
					"context_analysis": ctxResult,
				})
			}
			if err := c.printer.patternAnalysis(found); err != nil {
				return err
			}
			return c.printer.contextAnalysis(ctxResult)
		},
	}
	input.register(cmd)
	return cmd
}

func (c *CLI) createTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the fix templates",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			toolkit, err := c.toolkit()
			if err != nil {
				return err
			}
			views := toolkit.ListTemplates()
			if c.outputFormat == OutputJSON {
				return c.printer.json(views)
			}
			return c.printer.templates(views)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <error-type>",
		Short: "Show the steps of one template",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			toolkit, err := c.toolkit()
			if err != nil {
				return err
			}
			view, err := toolkit.GetTemplate(args[0])
			if err != nil {
				return err
			}
			if c.outputFormat == OutputJSON {
				return c.printer.json(view)
			}
			return c.printer.template(view)
		},
	})
	return cmd
}

func (c *CLI) createSetupCommand() *cobra.Command {
	var (
		driver string
		dsn    string
		remote bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the users and activity_logs tables",
		Long: `Create the users and activity_logs tables with their indexes and seed the
demo user. Every statement is idempotent. With --remote the running server's
POST /api/setup endpoint is called instead of opening the database here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				report database.Report
				err    error
			)
			if remote {
				err = c.client().post(cmd.Context(), "/api/setup", &report)
			} else {
				report, err = c.setupLocal(cmd, driver, dsn)
			}
			if err != nil {
				return err
			}

			if c.outputFormat == OutputJSON {
				return c.printer.json(report)
			}
			return c.printer.setupReport(report)
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "Database driver (sqlite3, postgres), overrides the configuration")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN, overrides the configuration")
	cmd.Flags().BoolVar(&remote, "remote", false, "Call the server instead of opening the database")
	return cmd
}

func (c *CLI) setupLocal(cmd *cobra.Command, driver, dsn string) (database.Report, error) {
	dbCfg := c.cfg.Database
	if driver != "" {
		dbCfg.Driver = driver
	}
	if dsn != "" {
		dbCfg.DSN = dsn
	}

	ds, err := database.OpenDatastore(cmd.Context(), dbCfg, nil)
	if err != nil {
		return database.Report{}, err
	}
	defer func() { _ = ds.Close() }()
	return ds.Setup(cmd.Context())
}

func (c *CLI) createMetricsCommand() *cobra.Command {
	var withDocs bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the workflow metrics of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snapshot workflow.MetricsSnapshot
			path := "/api/v1/bugx/metrics"
			if withDocs {
				path += "?documentation=true"
			}
			if err := c.client().get(cmd.Context(), path, &snapshot); err != nil {
				return err
			}
			if c.outputFormat == OutputJSON {
				return c.printer.json(snapshot)
			}
			return c.printer.metrics(snapshot)
		},
	}
	cmd.Flags().BoolVar(&withDocs, "docs", false, "Include the documentation log")
	return cmd
}

func (c *CLI) createHealthCommand() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run the toolkit diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report workflow.HealthReport
			if local {
				toolkit, err := c.toolkit()
				if err != nil {
					return err
				}
				report = toolkit.HealthCheck(cmd.Context())
			} else {
				var status struct {
					Diagnostics workflow.HealthReport `json:"diagnostics"`
				}
				if err := c.client().get(cmd.Context(), "/health", &status); err != nil {
					return err
				}
				report = status.Diagnostics
			}

			if c.outputFormat == OutputJSON {
				return c.printer.json(report)
			}
			return c.printer.health(report)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run the diagnostics in-process instead of asking the server")
	return cmd
}
