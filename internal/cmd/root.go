package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
// These match the expectations of shell scripts:
//
//	0 = selection made (use the result)
//	1 = cancelled by user
//	2 = error or fallback (no TTY, bad input, etc.)
const (
	exitSuccess   = 0
	exitCancelled = 1
	exitFallback  = 2
)

// exitError carries a process exit code through cobra. A nil err exits
// quietly.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var errCancelled = &exitError{code: exitCancelled}

var rootCmd = &cobra.Command{
	Use:   "runsel [file]",
	Short: "pick items from a list, with live previews",
	Long: `runsel - a terminal selector with asynchronously computed previews
  - items come from a YAML, JSON, TOML or plain text file, or stdin
  - previews run in the background while you type
  - the selected values are printed to stdout`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPick,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyColorMode()
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(rootCmd, os.Args[1:], os.Stderr)
}

func execute(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "runsel: %v\n", ee.err)
		}
		return ee.code
	}

	fmt.Fprintf(stderr, "runsel: %v\n", err)
	return exitFallback
}

func init() {
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")
	addPickFlags(rootCmd)

	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
