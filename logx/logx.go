// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logx provides the server's structured logging in two flavours.
//
// Async() events are rendered by zerolog into a buffer that is handed to
// the MPMC chunked queue and written to the sink by a single drain
// goroutine, so hot paths never block on the sink. Sync() events write
// straight through under a mutex; shutdown, fatal and startup paths use
// it because they must not race the drainer's backlog.
//
// File sinks roll at 10 MB per segment. Without Init, both flavours log
// to stderr at info level.
package logx

import (
	"io"
	"os"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"code.hybscloud.com/ringhttp/queue"
)

const maxSegmentMB = 10

// Config selects the sink and level.
type Config struct {
	// File is the log file path; empty means stderr.
	File string
	// Level is the minimum level for both flavours.
	Level zerolog.Level
}

type state struct {
	async   zerolog.Logger
	sync    zerolog.Logger
	q       *queue.Chunked[[]byte]
	closing atomix.Int32
	done    chan struct{}
}

var (
	mu      sync.Mutex
	current *state
)

// Init configures the sink. Returns false if logging is already running
// (Close first to reconfigure).
func Init(cfg Config) bool {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return false
	}
	current = newState(cfg)
	return true
}

func newState(cfg Config) *state {
	var sink io.Writer = os.Stderr
	if cfg.File != "" {
		sink = &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  maxSegmentMB,
		}
	}
	s := &state{
		q:    queue.NewChunked[[]byte](),
		done: make(chan struct{}),
	}
	s.async = zerolog.New(&queueWriter{s: s}).
		Level(cfg.Level).With().Timestamp().Logger()
	s.sync = zerolog.New(zerolog.SyncWriter(sink)).
		Level(cfg.Level).With().Timestamp().Logger()
	go s.drain(sink)
	return s
}

func get() *state {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = newState(Config{Level: zerolog.InfoLevel})
	}
	return current
}

// Async returns the queue-backed logger.
func Async() *zerolog.Logger {
	return &get().async
}

// Sync returns the write-through logger.
func Sync() *zerolog.Logger {
	return &get().sync
}

type queueWriter struct {
	s *state
}

// Write hands one rendered event to the drain queue. zerolog reuses its
// buffers, so the line is copied.
func (w *queueWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	w.s.q.Enqueue(&line)
	return len(p), nil
}

func (s *state) drain(sink io.Writer) {
	defer close(s.done)
	defer s.q.Detach()
	backoff := iox.Backoff{}
	for {
		line, err := s.q.Dequeue()
		if err == nil {
			backoff.Reset()
			_, _ = sink.Write(line)
			continue
		}
		if s.closing.LoadAcquire() != 0 {
			return
		}
		backoff.Wait()
	}
}

// Close drains outstanding events and releases the queue.
func Close() {
	mu.Lock()
	s := current
	current = nil
	mu.Unlock()
	if s == nil {
		return
	}
	s.closing.StoreRelease(1)
	<-s.done
	s.q.Close()
}
