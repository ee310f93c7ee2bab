package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/gslide2media/gslide2media/internal/options"
)

// Prompt errors.
var (
	ErrNotInteractive = errors.New("this action needs a terminal; pass flags instead (see --help)")
	ErrPromptAborted  = errors.New("aborted")
)

// Prompter is the interactive collaborator. Commands depend on this contract
// so tests can script the interaction.
type Prompter interface {
	// Select picks one option set out of the collated history.
	Select(named, unnamed []*options.Options) (*options.Options, error)
	// Confirm asks a yes/no question.
	Confirm(question string) (bool, error)
	// Input asks for one line of free text.
	Input(question string) (string, error)
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// terminalPrompter reads answers from stdin.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter returns a prompter over stdin/stderr.
func NewTerminalPrompter() Prompter {
	return &terminalPrompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (p *terminalPrompter) Select(named, unnamed []*options.Options) (*options.Options, error) {
	all := make([]*options.Options, 0, len(named)+len(unnamed))
	all = append(all, named...)
	all = append(all, unnamed...)
	if len(all) == 0 {
		return nil, errors.New("history is empty")
	}

	fmt.Fprintln(p.out, "Previous exports:")
	for i, o := range all {
		fmt.Fprintf(p.out, "  %2d. %s\n", i+1, o.View())
	}
	fmt.Fprintf(p.out, "Select an entry (1-%d, q to quit): ", len(all))

	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	if line == "q" || line == "" {
		return nil, ErrPromptAborted
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(all) {
		return nil, fmt.Errorf("invalid selection %q", line)
	}
	return all[n-1], nil
}

func (p *terminalPrompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (p *terminalPrompter) Input(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	return p.readLine()
}

func (p *terminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
