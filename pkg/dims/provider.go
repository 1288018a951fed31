package dims

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ErrNonInteractive is returned when dimensions must be entered but no operator is available
var ErrNonInteractive = errors.New("missing input dimensions and no interactive input available")

// InputProvider supplies the values for unknown dimensions.
// Prompt blocks until a line of whitespace-separated tokens is available. It returns io.EOF
// when no more input will arrive.
type InputProvider interface {
	Prompt(msg string) ([]string, error)
}

// Reporter is implemented by providers that can show a rejected entry to the operator
type Reporter interface {
	Report(err error)
}

// ProviderFunc adapts a function to InputProvider
type ProviderFunc func(msg string) ([]string, error)

func (f ProviderFunc) Prompt(msg string) ([]string, error) {
	return f(msg)
}

// NonInteractive fails every prompt
var NonInteractive InputProvider = ProviderFunc(func(string) ([]string, error) {
	return nil, ErrNonInteractive
})

// Tokens returns a provider answering successive prompts with the given lines
func Tokens(lines ...string) InputProvider {
	return &scripted{lines: lines}
}

type scripted struct {
	lines   []string
	prompts []string
}

func (s *scripted) Prompt(msg string) ([]string, error) {
	s.prompts = append(s.prompts, msg)
	if len(s.lines) == 0 {
		return nil, io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return strings.Fields(line), nil
}

// Terminal prompts on a writer and reads answers line by line
type Terminal struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewTerminal creates an interactive provider, typically over os.Stdin and os.Stderr
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{scanner: bufio.NewScanner(r), w: w}
}

func (t *Terminal) Prompt(msg string) ([]string, error) {
	fmt.Fprintln(t.w, msg)
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "reading dimensions")
		}
		return nil, io.EOF
	}
	return strings.Fields(t.scanner.Text()), nil
}

func (t *Terminal) Report(err error) {
	fmt.Fprintf(t.w, "Invalid input: %v\n", err)
}
