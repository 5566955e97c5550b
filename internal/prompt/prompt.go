// Package prompt collects user input: free text, masked secrets and a pick
// from a fixed list.
package prompt

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"
)

// Input describes one input box.
type Input struct {
	Title       string
	Placeholder string
	Value       string
	Password    bool
	// Validate rejects a value; the box stays open with the error shown.
	Validate func(string) error
}

// Prompter is the interactive surface. ok is false when the user dismissed the
// prompt without answering.
type Prompter interface {
	Input(ctx context.Context, in Input) (value string, ok bool, err error)
	Pick(ctx context.Context, title string, items []string) (item string, ok bool, err error)
}

// New returns a TUI prompter when both ends are terminals and a line-based
// prompter otherwise.
func New(in io.Reader, out io.Writer) Prompter {
	inFile, inOK := in.(*os.File)
	outFile, outOK := out.(*os.File)
	if inOK && outOK &&
		term.IsTerminal(int(inFile.Fd())) &&
		term.IsTerminal(int(outFile.Fd())) {
		return &TUI{in: inFile, out: outFile, fallback: NewLines(in, out)}
	}
	return NewLines(in, out)
}
