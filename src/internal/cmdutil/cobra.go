package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// PrintErrorStacks prints the stack of errors returned by commands, when set.
var PrintErrorStacks bool

// RunFixedArgs wraps run in a function that checks its exact argument count.
func RunFixedArgs(numArgs int, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return RunBoundedArgs(numArgs, numArgs, run)
}

// RunBoundedArgs wraps run in a function that checks its argument count is within a range.
func RunBoundedArgs(min, max int, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if len(args) < min || len(args) > max {
			if min == max {
				fmt.Fprintf(cmd.ErrOrStderr(), "expected %d arguments, got %d\n\n", min, len(args))
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "expected %d to %d arguments, got %d\n\n", min, max, len(args))
			}
			cmd.Usage() //nolint:errcheck
			os.Exit(2)
		}
		if err := run(cmd, args); err != nil {
			ErrorAndExit("%v", err)
		}
	}
}

// ErrorAndExit prints the formatted message to stderr and exits with status 1.
func ErrorAndExit(format string, args ...interface{}) {
	if s := strings.TrimSpace(fmt.Sprintf(format, args...)); s != "" {
		fmt.Fprintln(os.Stderr, s)
	}
	if len(args) > 0 && PrintErrorStacks {
		if err, ok := args[0].(error); ok {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
	}
	os.Exit(1)
}
