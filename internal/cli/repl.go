package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bugx/internal/workflow"
)

// errQuit ends the REPL loop
var errQuit = errors.New("quit")

// replEntry is one line typed in the session
type replEntry struct {
	Input     string
	SessionID string
	Success   bool
	Timestamp time.Time
}

// repl is an interactive debugging session. Plain lines run a quick fix with
// the session context; lines starting with ':' are commands.
type repl struct {
	cli     *CLI
	toolkit *workflow.Orchestrator
	input   io.Reader

	developer   string
	component   string
	fileName    string
	codeContext string
	history     []replEntry

	promptColor *color.Color
	infoColor   *color.Color
}

func (c *CLI) createREPLCommand() *cobra.Command {
	var developer string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive debugging session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			toolkit, err := c.toolkit()
			if err != nil {
				return err
			}
			r := &repl{
				cli:         c,
				toolkit:     toolkit,
				input:       c.in,
				developer:   developer,
				promptColor: color.New(color.FgCyan, color.Bold),
				infoColor:   color.New(color.FgYellow),
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&developer, "developer", os.Getenv("USER"), "Who is debugging")
	return cmd
}

func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.info("BugX interactive session. Paste an error message to run a quick fix, :help for commands.")

	scanner := bufio.NewScanner(r.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		r.prompt()
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			r.cli.printer.linef("")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		if strings.HasPrefix(line, ":") {
			err = r.command(ctx, line)
		} else {
			err = r.quickFix(ctx, line)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			r.cli.printer.errorf("Error: %v", err)
		}
	}
}

func (r *repl) prompt() {
	label := "bugx"
	if r.component != "" {
		label += ":" + r.component
	}
	_, _ = r.promptColor.Fprintf(r.cli.out, "%s> ", label)
}

func (r *repl) info(message string) {
	_, _ = r.infoColor.Fprintln(r.cli.out, message)
}

func (r *repl) command(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	name, args := parts[0], parts[1:]

	switch name {
	case ":help", ":h":
		r.help()
		return nil
	case ":quit", ":q", ":exit":
		return errQuit
	case ":component":
		r.component = strings.Join(args, " ")
		r.info(fmt.Sprintf("component: %s", orDash(r.component)))
		return nil
	case ":file":
		return r.loadFile(args)
	case ":analyze":
		if len(args) == 0 {
			return errors.New("usage: :analyze <error message>")
		}
		req := r.request(strings.Join(args, " "))
		if err := r.cli.printer.patternAnalysis(r.toolkit.AnalyzePattern(req.ErrorMessage, req.StackTrace, req.CodeContext, req.FileName)); err != nil {
			return err
		}
		return r.cli.printer.contextAnalysis(r.toolkit.AnalyzeContext(req))
	case ":templates":
		if len(args) == 0 {
			return r.cli.printer.templates(r.toolkit.ListTemplates())
		}
		view, err := r.toolkit.GetTemplate(args[0])
		if err != nil {
			return err
		}
		return r.cli.printer.template(view)
	case ":metrics":
		return r.cli.printer.metrics(r.toolkit.GetMetrics(false))
	case ":health":
		return r.cli.printer.health(r.toolkit.HealthCheck(ctx))
	case ":history":
		r.printHistory()
		return nil
	case ":reset":
		r.component, r.fileName, r.codeContext = "", "", ""
		r.info("session context cleared")
		return nil
	default:
		return fmt.Errorf("unknown command: %s (try :help)", name)
	}
}

func (r *repl) help() {
	r.cli.printer.heading("Commands")
	for _, line := range []string{
		"<error message>        run a quick fix with the session context",
		":analyze <message>     recognise patterns without running a workflow",
		":component <name>      set the component for the next runs",
		":file <path>           attach a source file for anti-pattern detection",
		":templates [type]      list the fix templates or show one",
		":metrics               show the session metrics",
		":health                run the diagnostics",
		":history               list the errors debugged in this session",
		":reset                 clear the component and file",
		":quit                  leave",
	} {
		r.cli.printer.linef("  %s", line)
	}
}

func (r *repl) loadFile(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: :file <path>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	r.codeContext = string(data)
	r.fileName = baseName(args[0])
	r.info(fmt.Sprintf("attached %s (%d bytes)", r.fileName, len(data)))
	return nil
}

func (r *repl) request(message string) workflow.Request {
	return workflow.Request{
		Developer:    r.developer,
		ErrorMessage: message,
		FileName:     r.fileName,
		Component:    r.component,
		CodeContext:  r.codeContext,
	}
}

func (r *repl) quickFix(ctx context.Context, message string) error {
	result, err := r.toolkit.QuickFix(ctx, r.request(message))
	if err != nil {
		return err
	}
	r.history = append(r.history, replEntry{
		Input:     message,
		SessionID: result.SessionID,
		Success:   result.Success,
		Timestamp: time.Now(),
	})
	return r.cli.printer.workflowResult(result)
}

func (r *repl) printHistory() {
	if len(r.history) == 0 {
		r.info("no errors debugged yet")
		return
	}
	for i, entry := range r.history {
		status := r.cli.printer.success.Sprint("ok")
		if !entry.Success {
			status = r.cli.printer.failure.Sprint("failed")
		}
		r.cli.printer.linef("%3d  %s  %-6s  %s", i+1, entry.Timestamp.Format("15:04:05"), status, entry.Input)
	}
}
