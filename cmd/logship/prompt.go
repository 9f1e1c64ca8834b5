package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

const (
	_promptText    = "Choose the number of messages:"
	_invalidChoice = "Invalid choice"
)

// lineReader returns one line of input per call and io.EOF at the end.
type lineReader interface {
	Readline() (string, error)
}

type readlineReader struct {
	rl *readline.Instance
}

// Readline maps Ctrl+C to io.EOF so an interrupt ends the prompt.
func (r *readlineReader) Readline() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

type scanResult struct {
	line string
	err  error
}

// scanReader reads lines on its own goroutine so a blocked read never keeps
// the prompt from noticing Close.
type scanReader struct {
	lines chan scanResult
	stop  chan struct{}
	once  sync.Once
}

func newScanReader(in io.Reader) *scanReader {
	r := &scanReader{
		lines: make(chan scanResult),
		stop:  make(chan struct{}),
	}
	go r.scan(bufio.NewScanner(in))
	return r
}

func (r *scanReader) scan(s *bufio.Scanner) {
	defer close(r.lines)
	for s.Scan() {
		select {
		case r.lines <- scanResult{line: s.Text()}:
		case <-r.stop:
			return
		}
	}
	err := s.Err()
	if err == nil {
		return
	}
	select {
	case r.lines <- scanResult{err: err}:
	case <-r.stop:
	}
}

// Readline returns the next line, or io.EOF once input ends or Close is called.
func (r *scanReader) Readline() (string, error) {
	select {
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	case <-r.stop:
		return "", io.EOF
	}
}

// Close unblocks a pending Readline. The reading goroutine exits at its next
// line or when the input is closed.
func (r *scanReader) Close() {
	r.once.Do(func() { close(r.stop) })
}

// runPrompt asks for a count until the user enters 0, input ends or ctx is
// done. A positive count calls ship; anything else prints "Invalid choice".
// Ship errors are reported and the prompt continues.
func runPrompt(ctx context.Context, r lineReader, out io.Writer, ship func(n int) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintln(out, _promptText)

		line, err := r.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		n, err := strconv.Atoi(strings.TrimSpace(line))
		switch {
		case err != nil || n < 0:
			fmt.Fprintln(out, _invalidChoice)
		case n == 0:
			return nil
		default:
			if err := ship(n); err != nil {
				fmt.Fprintf(out, "ship failed: %v\n", err)
			}
		}
	}
}
