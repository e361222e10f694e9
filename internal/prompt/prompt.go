// Package prompt asks the user to confirm destructive operations.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

var (
	// ErrDeclined is returned when the user answers no.
	ErrDeclined = errors.New("operation cancelled")
	// ErrInterrupted is returned when input ends before an answer is given.
	ErrInterrupted = errors.New("confirmation interrupted")
)

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// Static is a Confirmer that always returns the same answer.
type Static bool

// Confirm implements Confirmer.
func (s Static) Confirm(string) (bool, error) { return bool(s), nil }

// Terminal reads answers line by line from In. Empty input means no.
type Terminal struct {
	In        io.Reader
	Out       io.Writer
	AssumeYes bool

	scanner *bufio.Scanner
}

// NewTerminal returns a Terminal bound to stdin/stdout.
func NewTerminal(assumeYes bool) *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout, AssumeYes: assumeYes}
}

// Interactive reports whether In is attached to a terminal.
func (t *Terminal) Interactive() bool {
	f, ok := t.In.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Confirm prints message and waits for y/yes or n/no. Anything else re-asks.
func (t *Terminal) Confirm(message string) (bool, error) {
	if t.AssumeYes {
		return true, nil
	}

	if t.scanner == nil {
		t.scanner = bufio.NewScanner(t.In)
	}

	for {
		fmt.Fprintf(t.Out, "%s [y/N] ", message)

		if !t.scanner.Scan() {
			fmt.Fprintln(t.Out)
			if err := t.scanner.Err(); err != nil {
				return false, fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
			return false, ErrInterrupted
		}

		switch strings.ToLower(strings.TrimSpace(t.scanner.Text())) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
	}
}

// Choose lists options and reads a 1-based choice. An empty answer or end of
// input cancels.
func (t *Terminal) Choose(message string, options []string) (string, error) {
	if t.scanner == nil {
		t.scanner = bufio.NewScanner(t.In)
	}

	fmt.Fprintln(t.Out, message)
	for i, o := range options {
		fmt.Fprintf(t.Out, "  %d) %s\n", i+1, o)
	}

	for {
		fmt.Fprintf(t.Out, "Choice [1-%d]: ", len(options))

		if !t.scanner.Scan() {
			fmt.Fprintln(t.Out)
			return "", ErrInterrupted
		}

		answer := strings.TrimSpace(t.scanner.Text())
		if answer == "" {
			return "", ErrDeclined
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
	}
}

// Require asks c and converts a "no" into ErrDeclined.
func Require(c Confirmer, message string) error {
	ok, err := c.Confirm(message)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}
