package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/alphabill-org/ptsim/commands"
)

// consoleWriter receives the command output, tests replace it to capture the output
var consoleWriter commands.Printer = newConsoleWriter(os.Stdout)

// lineConsole writes command output into "out", errors of the writer are ignored.
type lineConsole struct {
	out io.Writer
}

func newConsoleWriter(out io.Writer) *lineConsole {
	return &lineConsole{out: out}
}

func (c *lineConsole) Println(a ...any) {
	_, _ = fmt.Fprintln(c.out, a...)
}

func (c *lineConsole) Print(a ...any) {
	_, _ = fmt.Fprint(c.out, a...)
}
