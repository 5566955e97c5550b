package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidRange    = errors.New("invalid range")
)

// Position is a zero-based line and character offset. Characters are counted
// in runes; a trailing carriage return is not part of the line.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Document is the editor surface a completion is spliced into.
type Document interface {
	// ID identifies the document for admission control.
	ID() string
	Name() string
	Text() (string, error)
	TextIn(r Range) (string, error)
	End() (Position, error)
	// Insert applies text at the position as a single all-or-nothing edit.
	Insert(at Position, text string) error
}

// ParseRange parses "L:C-L:C".
func ParseRange(s string) (Range, error) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q (want L:C-L:C)", ErrInvalidRange, s)
	}
	start, err := parsePosition(startRaw)
	if err != nil {
		return Range{}, err
	}
	end, err := parsePosition(endRaw)
	if err != nil {
		return Range{}, err
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end, start)
	}
	return Range{Start: start, End: end}, nil
}

func parsePosition(s string) (Position, error) {
	lineRaw, charRaw, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Position{}, fmt.Errorf("%w: %q (want L:C)", ErrInvalidPosition, s)
	}
	line, err := strconv.Atoi(lineRaw)
	if err != nil || line < 0 {
		return Position{}, fmt.Errorf("%w: line %q", ErrInvalidPosition, lineRaw)
	}
	char, err := strconv.Atoi(charRaw)
	if err != nil || char < 0 {
		return Position{}, fmt.Errorf("%w: character %q", ErrInvalidPosition, charRaw)
	}
	return Position{Line: line, Character: char}, nil
}

// endOf returns the position after the last character of text.
func endOf(text string) Position {
	lastNL := strings.LastIndexByte(text, '\n')
	line := strings.Count(text, "\n")
	last := text[lastNL+1:]
	return Position{Line: line, Character: utf8.RuneCountInString(strings.TrimSuffix(last, "\r"))}
}

// offsetOf converts a position into a byte offset within text.
func offsetOf(text string, pos Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPosition, pos)
	}

	lineStart := 0
	for range pos.Line {
		nl := strings.IndexByte(text[lineStart:], '\n')
		if nl < 0 {
			return 0, fmt.Errorf("%w: %s beyond last line", ErrInvalidPosition, pos)
		}
		lineStart += nl + 1
	}

	line := text[lineStart:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	line = strings.TrimSuffix(line, "\r")

	offset := 0
	for i := range pos.Character {
		if offset >= len(line) {
			return 0, fmt.Errorf("%w: %s beyond end of line (%d characters)", ErrInvalidPosition, pos, i)
		}
		_, size := utf8.DecodeRuneInString(line[offset:])
		offset += size
	}
	return lineStart + offset, nil
}

func sliceRange(text string, r Range) (string, error) {
	if r.End.Before(r.Start) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	start, err := offsetOf(text, r.Start)
	if err != nil {
		return "", err
	}
	end, err := offsetOf(text, r.End)
	if err != nil {
		return "", err
	}
	return text[start:end], nil
}

func insertAt(text string, at Position, insert string) (string, error) {
	offset, err := offsetOf(text, at)
	if err != nil {
		return "", err
	}
	return text[:offset] + insert + text[offset:], nil
}
