package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"treeindex/btree"
	"treeindex/executor"
)

var (
	errColor    = color.New(color.FgRed)
	promptColor = color.New(color.FgYellow, color.Bold)
)

type Cli struct {
	scanner *bufio.Scanner
	out     io.Writer
	exec    *executor.Executor[string]
	// redraw the tree after every change
	echo bool
}

func NewCli(s *bufio.Scanner, out io.Writer, e *executor.Executor[string], echo bool) *Cli {
	return &Cli{scanner: s, out: out, exec: e, echo: echo}
}

// Start reads commands until EXIT or the end of input.
func (c *Cli) Start() {
	c.printHelp()
	c.printPrompt()
	for c.scanner.Scan() {
		if !c.processInput(c.scanner.Text()) {
			return
		}
		c.printPrompt()
	}
}

func (c *Cli) printHelp() {
	fmt.Fprint(c.out, `
Tree index CLI

Available Commands:
  SET <key> <val>         Insert a key-value pair
  DEL <key>               Remove a key-value pair
  GET <key>               Retrieve the value for key
  RANGE <from> <to>       List the pairs with from <= key < to
  DELRANGE <from> <to>    Remove the pairs with from <= key < to
  SHOW [values]           Draw the tree
  CHECK                   Verify the tree's invariants
  HELP                    Print this message
  EXIT                    Terminate this session

`)
}

func (c *Cli) printPrompt() {
	promptColor.Fprint(c.out, "> ")
}

func (c *Cli) printErr(format string, args ...any) {
	errColor.Fprintf(c.out, format+"\n", args...)
}

// processInput runs one command line and reports whether the session goes on.
func (c *Cli) processInput(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 1 {
		return true
	}
	command := strings.ToLower(fields[0])
	switch command {
	default:
		c.printErr("Unknown command \"%s\"", command)
	case "set":
		c.processSetCommand(fields[1:])
	case "del":
		c.processDeleteCommand(fields[1:])
	case "get":
		c.processGetCommand(fields[1:])
	case "range":
		c.processRangeCommand(fields[1:])
	case "delrange":
		c.processDeleteRangeCommand(fields[1:])
	case "show":
		c.processShowCommand(fields[1:])
	case "check":
		c.processCheckCommand()
	case "help":
		c.printHelp()
	case "exit":
		return false
	}
	return true
}

func parseKeys(args []string) ([]int, error) {
	keys := make([]int, len(args))
	for i, a := range args {
		k, err := strconv.Atoi(a)
		if err != nil {
			return nil, errors.Errorf("invalid key %q", a)
		}
		keys[i] = k
	}
	return keys, nil
}

func (c *Cli) processSetCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: SET <key> <value>")
		return
	}
	keys, err := parseKeys(args[:1])
	if err != nil {
		c.printErr("%v", err)
		return
	}
	ok, err := c.exec.Insert(keys[0], strings.Join(args[1:], " "))
	if err != nil {
		c.printErr("%v", err)
		return
	}
	if !ok {
		fmt.Fprintln(c.out, "Key already present.")
		return
	}
	c.redraw()
}

func (c *Cli) processDeleteCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: DEL <key>")
		return
	}
	keys, err := parseKeys(args)
	if err != nil {
		c.printErr("%v", err)
		return
	}
	ok, err := c.exec.Delete(keys[0])
	if err != nil {
		c.printErr("%v", err)
		return
	}
	if !ok {
		fmt.Fprintln(c.out, "Key not found.")
		return
	}
	c.redraw()
}

func (c *Cli) processGetCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: GET <key>")
		return
	}
	keys, err := parseKeys(args)
	if err != nil {
		c.printErr("%v", err)
		return
	}
	val, ok, err := c.exec.Search(keys[0])
	if err != nil {
		c.printErr("%v", err)
		return
	}
	if !ok {
		fmt.Fprintln(c.out, "Key not found.")
		return
	}
	fmt.Fprintln(c.out, val)
}

func (c *Cli) processRangeCommand(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: RANGE <from> <to>")
		return
	}
	keys, err := parseKeys(args)
	if err != nil {
		c.printErr("%v", err)
		return
	}
	entries, err := c.exec.SearchRange(keys[0], keys[1])
	if err != nil {
		c.printErr("%v", err)
		return
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%d\t%s\n", e.Key, e.Val)
	}
	fmt.Fprintf(c.out, "(%d entries)\n", len(entries))
}

func (c *Cli) processDeleteRangeCommand(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: DELRANGE <from> <to>")
		return
	}
	keys, err := parseKeys(args)
	if err != nil {
		c.printErr("%v", err)
		return
	}
	n, err := c.exec.DeleteRange(keys[0], keys[1])
	if err != nil {
		c.printErr("%v", err)
		return
	}
	fmt.Fprintf(c.out, "Removed %d entries.\n", n)
	if n > 0 {
		c.redraw()
	}
}

func (c *Cli) processShowCommand(args []string) {
	showValues := len(args) == 1 && strings.EqualFold(args[0], "values")
	c.draw(showValues)
}

func (c *Cli) processCheckCommand() {
	if err := c.exec.Validate(); err != nil {
		c.printErr("%v", err)
		return
	}
	fmt.Fprintln(c.out, "OK")
}

func (c *Cli) redraw() {
	if c.echo {
		c.draw(false)
	}
}

func (c *Cli) draw(showValues bool) {
	snap, err := c.exec.Traverse()
	if err != nil {
		c.printErr("%v", err)
		return
	}
	v := &btree.Visualizer[string]{Snapshot: snap, ShowValues: showValues}
	fmt.Fprint(c.out, v.Visualize())
}
