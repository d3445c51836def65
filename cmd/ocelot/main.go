// Package main contains the interactive shell for the storage engine. It
// uses the cobra package for the cli surface and hands every line to the
// external SQL parser before execution.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ocelot/internal/catalog"
	"ocelot/internal/config"
	"ocelot/internal/exec"
	"ocelot/internal/logging"
	"ocelot/internal/output"
	"ocelot/internal/sql"
)

type shellFlags struct {
	configFile string
	logFile    string
	logLevel   string
	format     string
	quiet      bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &shellFlags{}
	cmd := &cobra.Command{
		Use:           "ocelot <data-dir>",
		Short:         "Interactive shell for the ocelot storage engine",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "Config file (TOML)")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file; stderr when empty")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Result format: human or json")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress the prompt")
	return cmd
}

func runShell(cmd *cobra.Command, args []string, flags *shellFlags) error {
	cfg, err := config.Load(flags.configFile, flags.configFile != "")
	if err != nil {
		return err
	}
	if flags.logFile != "" {
		cfg.LogFile = flags.logFile
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.format != "" {
		cfg.Format = flags.format
	}
	if flags.quiet {
		cfg.Quiet = true
	}
	if len(args) == 1 {
		cfg.DataDir = args[0]
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("a database directory is required")
	}
	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("database directory %s: %w", cfg.DataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database directory %s: not a directory", cfg.DataDir)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	formatter, err := output.NewFormatter(cfg.Format)
	if err != nil {
		return err
	}

	cat := catalog.New(cfg.DataDir, log)
	defer func() { _ = cat.Close() }()

	repl(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), &replOpts{
		prompt:    !cfg.Quiet && term.IsTerminal(int(os.Stdin.Fd())),
		parser:    sql.NewParser(),
		executor:  exec.New(cat, log),
		formatter: formatter,
	})
	return nil
}

type replOpts struct {
	prompt    bool
	parser    *sql.Parser
	executor  *exec.Executor
	formatter output.Formatter
}

// repl reads one line at a time: empty lines loop, the literal token quit
// ends the session, anything else is lowercased, parsed, and executed
// statement by statement. Errors are printed and the loop continues.
func repl(in io.Reader, out, errOut io.Writer, opts *replOpts) {
	scanner := bufio.NewScanner(in)
	for {
		if opts.prompt {
			fmt.Fprint(out, "SQL> ")
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			return
		}

		stmts, err := opts.parser.Parse(strings.ToLower(line))
		if err != nil {
			fmt.Fprintln(errOut, err)
			continue
		}
		for _, stmt := range stmts {
			result, err := opts.executor.Execute(stmt)
			if err != nil {
				fmt.Fprintln(errOut, err)
				continue
			}
			text, err := opts.formatter.FormatResult(result)
			if err != nil {
				fmt.Fprintln(errOut, err)
				continue
			}
			fmt.Fprintln(out, text)
		}
	}
}
