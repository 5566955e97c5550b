package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Lines prompts on plain reader/writer pairs, one answer per line. End of
// input dismisses the prompt.
type Lines struct {
	in  *bufio.Reader
	out io.Writer
}

func NewLines(in io.Reader, out io.Writer) *Lines {
	return &Lines{in: bufio.NewReader(in), out: out}
}

func (l *Lines) Input(ctx context.Context, in Input) (string, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		label := in.Title
		if in.Placeholder != "" {
			label += " [" + in.Placeholder + "]"
		}
		_, _ = fmt.Fprintf(l.out, "%s: ", label)

		line, ok, err := l.readLine()
		if err != nil || !ok {
			return "", false, err
		}
		if line == "" && in.Value != "" {
			line = in.Value
		}
		if in.Validate != nil {
			if verr := in.Validate(line); verr != nil {
				_, _ = fmt.Fprintf(l.out, "  %s\n", verr)
				continue
			}
		}
		return line, true, nil
	}
}

func (l *Lines) Pick(ctx context.Context, title string, items []string) (string, bool, error) {
	if len(items) == 0 {
		return "", false, errors.New("nothing to pick from")
	}
	for i, item := range items {
		_, _ = fmt.Fprintf(l.out, "  %d) %s\n", i+1, item)
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		_, _ = fmt.Fprintf(l.out, "%s: ", title)

		line, ok, err := l.readLine()
		if err != nil || !ok {
			return "", false, err
		}
		if n, convErr := strconv.Atoi(line); convErr == nil && n >= 1 && n <= len(items) {
			return items[n-1], true, nil
		}
		for _, item := range items {
			if item == line {
				return item, true, nil
			}
		}
		_, _ = fmt.Fprintf(l.out, "  choose 1-%d\n", len(items))
	}
}

func (l *Lines) readLine() (string, bool, error) {
	line, err := l.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				return "", false, nil
			}
			return strings.TrimSpace(line), true, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(line), true, nil
}

var _ Prompter = (*Lines)(nil)
