package review

import (
	"os"

	"golang.org/x/term"
)

// IsOutputTerminal reports whether stdout is a TTY. The daemon defaults to
// human-readable logs on a terminal and JSON when output is piped or
// captured by a supervisor.
func IsOutputTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
