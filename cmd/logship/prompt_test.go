package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linchenxuan/logship/config"
	"github.com/linchenxuan/logship/log"
)

type scriptedReader struct {
	lines []string
	err   error
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		if r.err != nil {
			return "", r.err
		}
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func TestPromptShipsCounts(t *testing.T) {
	var out bytes.Buffer
	var shipped []int
	r := &scriptedReader{lines: []string{"3", " 2 ", "0", "5"}}

	err := runPrompt(context.Background(), r, &out, func(n int) error {
		shipped = append(shipped, n)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, shipped)
	assert.Equal(t, 3, strings.Count(out.String(), _promptText))
	assert.NotContains(t, out.String(), _invalidChoice)
}

func TestPromptInvalidChoice(t *testing.T) {
	var out bytes.Buffer
	r := &scriptedReader{lines: []string{"abc", "-1", "", "1.5", "0"}}

	err := runPrompt(context.Background(), r, &out, func(int) error {
		t.Fatal("nothing should be shipped")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out.String(), _invalidChoice))
}

func TestPromptEOF(t *testing.T) {
	var out bytes.Buffer
	err := runPrompt(context.Background(), &scriptedReader{}, &out, func(int) error { return nil })
	assert.NoError(t, err)
}

func TestPromptReadError(t *testing.T) {
	var out bytes.Buffer
	r := &scriptedReader{err: errors.New("tty gone")}
	err := runPrompt(context.Background(), r, &out, func(int) error { return nil })
	assert.ErrorContains(t, err, "tty gone")
}

func TestPromptCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	err := runPrompt(ctx, &scriptedReader{lines: []string{"1"}}, &out, func(int) error {
		t.Fatal("nothing should be shipped")
		return nil
	})
	assert.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestPromptShipErrorContinues(t *testing.T) {
	var out bytes.Buffer
	calls := 0
	r := &scriptedReader{lines: []string{"1", "1", "0"}}
	err := runPrompt(context.Background(), r, &out, func(int) error {
		calls++
		return errors.New("queue full")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, out.String(), "ship failed: queue full")
}

func TestRunShipsOverUDP(t *testing.T) {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer pc.Close()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	in, input := io.Pipe()
	cmd, _ := newRootCmd()
	out := &syncBuffer{}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--port", strconv.Itoa(port), "--log-level", "error"})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	_, err = io.WriteString(input, "2\n")
	require.NoError(t, err)

	buf := make([]byte, 2048)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 2; i++ {
		n, _, err := pc.ReadFromUDP(buf)
		require.NoError(t, err)
		frame := string(buf[:n])
		assert.True(t, strings.HasPrefix(frame, "<220>1 "), frame)
		idx := strings.Index(frame, "\xEF\xBB\xBF")
		require.GreaterOrEqual(t, idx, 0)
		_, err = time.Parse(time.RFC3339Nano, frame[idx+3:])
		assert.NoError(t, err)
	}

	_, err = io.WriteString(input, "x\n0\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("command did not exit on 0")
	}
	_ = input.Close()

	assert.Contains(t, out.String(), _promptText)
	assert.Contains(t, out.String(), _invalidChoice)
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestBuildConfigFromFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logship.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: tcp\nshipper:\n  queueCapacity: 4\n"), 0o600))

	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--host", "collector",
		"--reconnect-interval", "250ms",
		"--max-send-attempts", "3",
		"--metrics-addr", "127.0.0.1:0",
		"--log-file", "diag/logship.log",
	}))

	cfg, err := buildConfig(cmd, opts)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, 4, cfg.Shipper.QueueCapacity)
	assert.Equal(t, 3, cfg.Shipper.MaxSendAttempts)
	tcp := cfg.Plugin["transport"].(map[string]any)["tcp"].(map[string]any)
	assert.Equal(t, "collector", tcp["host"])
	assert.Equal(t, 250, tcp["reconnectIntervalMs"])
	assert.Contains(t, cfg.Plugin["metrics"], "prometheus")
	assert.True(t, cfg.Log.FileAppender)
	assert.Equal(t, "diag/logship.log", cfg.Log.FilePath)
}

func TestScanReaderCloseUnblocks(t *testing.T) {
	in, input := io.Pipe()
	defer input.Close()
	r := newScanReader(in)

	_, err := io.WriteString(input, "7\n")
	require.NoError(t, err)
	line, err := r.Readline()
	require.NoError(t, err)
	assert.Equal(t, "7", line)

	got := make(chan error, 1)
	go func() {
		_, err := r.Readline()
		got <- err
	}()
	r.Close()
	r.Close()

	select {
	case err := <-got:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Readline still blocked after Close")
	}
}

func TestScanReaderEOF(t *testing.T) {
	r := newScanReader(strings.NewReader("1\n"))
	line, err := r.Readline()
	require.NoError(t, err)
	assert.Equal(t, "1", line)

	_, err = r.Readline()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.Readline()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunExitsOnCancelWithOpenInput(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = "memory"
	cfg.Log = log.LogCfg{LogLevel: log.ErrorLevel}
	require.NoError(t, cfg.Validate())

	in, input := io.Pipe()
	defer input.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, in, io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
