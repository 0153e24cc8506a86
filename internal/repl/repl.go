// internal/repl/repl.go
//
// Interactive session on the tree-walking engine: bindings persist across
// inputs, faults are reported without tearing the session down, and the
// value of the last expression is echoed back.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"rill/internal/fault"
	"rill/internal/interp"
	"rill/internal/parser"
	"rill/internal/value"
)

const historyFile = ".rill_history"

type REPL struct {
	in  *interp.Interp
	out io.Writer
}

func New() *REPL {
	in := interp.New()
	in.SetFileName("<repl>")
	return &REPL{in: in, out: os.Stdout}
}

func (r *REPL) historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

// Run reads lines until EOF or an exit command.
func (r *REPL) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := r.historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(r.out, "rill repl (type 'exit' to leave)")
	for {
		src, err := line.Prompt("rill> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return nil
		}
		line.AppendHistory(src)
		r.eval(src)
	}
}

// eval runs one input. A fault leaves every binding intact.
func (r *REPL) eval(src string) {
	stmts, err := parser.ParseSource(src)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	r.in.SetOutput(r.out)
	res, err := r.in.Exec(stmts)
	if err != nil {
		if f, ok := err.(*fault.Fault); ok {
			fmt.Fprintln(r.out, f.Error())
			return
		}
		fmt.Fprintln(r.out, err)
		return
	}
	if res != nil {
		fmt.Fprintln(r.out, value.Format(res))
	}
}
