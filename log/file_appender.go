package log

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"time"
)

// _maxBatchBytes bounds one async write to disk.
const _maxBatchBytes = 4 << 20

// ErrAppenderClosed is returned by writes after Close.
var ErrAppenderClosed = errors.New("file appender closed")

// FileAppender writes diagnostics to a file with size and time based
// rotation. In async mode lines are handed to a flusher goroutine over a
// buffered channel and written in batches every FileFlushMs.
type FileAppender struct {
	rot rotation

	mu       sync.Mutex
	fd       *os.File
	size     int64
	openedAt time.Time
	closed   bool

	async   bool
	lines   chan []byte
	flushCh chan chan struct{}
	stopCh  chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
	batch   bytes.Buffer
}

// NewFileAppender opens cfg.FilePath and, in async mode, starts the flusher.
func NewFileAppender(cfg *LogCfg) (*FileAppender, error) {
	a := &FileAppender{
		rot: rotation{
			path:      cfg.FilePath,
			splitMB:   cfg.FileSplitMB,
			splitHour: cfg.FileSplitHour,
			now:       time.Now,
		},
		async: cfg.FileAsync,
	}
	fd, err := a.rot.open()
	if err != nil {
		return nil, err
	}
	a.setFile(fd)

	if a.async {
		queueSize, flushMs := cfg.FileAsyncQueue, cfg.FileFlushMs
		if queueSize <= 0 {
			queueSize = 1024
		}
		if flushMs <= 0 {
			flushMs = 200
		}
		a.lines = make(chan []byte, queueSize)
		a.flushCh = make(chan chan struct{})
		a.stopCh = make(chan struct{})
		a.wg.Add(1)
		go a.flushLoop(time.Duration(flushMs) * time.Millisecond)
	}
	return a, nil
}

func (a *FileAppender) setFile(fd *os.File) {
	a.fd = fd
	a.size = 0
	a.openedAt = a.rot.now()
	if fi, err := fd.Stat(); err == nil {
		a.size = fi.Size()
	}
}

// Write appends one line. In async mode the line is copied and queued; when
// the queue is full the caller writes through synchronously.
func (a *FileAppender) Write(buf []byte) (int, error) {
	if !a.async {
		return a.writeFile(buf)
	}
	select {
	case <-a.stopCh:
		return 0, ErrAppenderClosed
	default:
	}
	line := append([]byte(nil), buf...)
	select {
	case a.lines <- line:
		return len(buf), nil
	default:
		return a.writeFile(buf)
	}
}

func (a *FileAppender) writeFile(buf []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrAppenderClosed
	}
	if a.rot.due(a.size, a.openedAt) {
		fd, err := a.rot.rotate(a.fd)
		if err != nil {
			return 0, err
		}
		a.setFile(fd)
	}
	n, err := a.fd.Write(buf)
	a.size += int64(n)
	return n, err
}

// Refresh writes every queued line and syncs the file.
func (a *FileAppender) Refresh() error {
	if a.async {
		done := make(chan struct{})
		select {
		case a.flushCh <- done:
			<-done
		case <-a.stopCh:
			return nil
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.fd.Sync()
}

// Close flushes pending lines and closes the file. Safe to call twice.
func (a *FileAppender) Close() error {
	if a.async {
		a.stop.Do(func() { close(a.stopCh) })
		a.wg.Wait()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.fd.Close()
}

func (a *FileAppender) flushLoop(every time.Duration) {
	defer a.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case done := <-a.flushCh:
			a.drain()
			close(done)
		case <-ticker.C:
			a.drain()
		case <-a.stopCh:
			a.drain()
			return
		}
	}
}

// drain writes everything currently queued in batches of at most _maxBatchBytes.
func (a *FileAppender) drain() {
	for {
		select {
		case line := <-a.lines:
			if a.batch.Len()+len(line) > _maxBatchBytes {
				_, _ = a.writeFile(a.batch.Bytes())
				a.batch.Reset()
			}
			a.batch.Write(line)
		default:
			if a.batch.Len() > 0 {
				_, _ = a.writeFile(a.batch.Bytes())
				a.batch.Reset()
			}
			return
		}
	}
}
