// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aio_test

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/ringhttp/aio"
	"code.hybscloud.com/ringhttp/coro"
)

// The context is a process singleton and its shutdown is terminal, so the
// whole lifecycle runs as one ordered test.
func TestContextLifecycle(t *testing.T) {
	coro.InitPool(2)
	x := aio.Get()
	runDone := make(chan struct{})
	go func() {
		x.Run()
		close(runDone)
	}()

	t.Run("PipeReadDelivresCount", func(t *testing.T) {
		var fds [2]int
		if err := unix.Pipe(fds[:]); err != nil {
			t.Fatalf("pipe: %v", err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		payload := []byte("ring data")
		if _, err := unix.Write(fds[1], payload); err != nil {
			t.Fatalf("write: %v", err)
		}

		type outcome struct {
			n   int
			err error
			buf []byte
		}
		res := make(chan outcome, 1)
		coro.Go(func(c *coro.Coroutine) {
			buf := make([]byte, 64)
			n, err := x.Read(c, fds[0], buf, 0)
			res <- outcome{n, err, buf}
		})

		select {
		case out := <-res:
			if out.err != nil {
				t.Fatalf("Read: %v", out.err)
			}
			if out.n != len(payload) {
				t.Fatalf("Read: got %d bytes, want %d", out.n, len(payload))
			}
			if string(out.buf[:out.n]) != string(payload) {
				t.Fatalf("Read: got %q", out.buf[:out.n])
			}
		case <-time.After(5 * time.Second):
			t.Fatal("read never resumed")
		}
	})

	t.Run("WriteRoundTrip", func(t *testing.T) {
		var fds [2]int
		if err := unix.Pipe(fds[:]); err != nil {
			t.Fatalf("pipe: %v", err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		res := make(chan error, 1)
		coro.Go(func(c *coro.Coroutine) {
			n, err := x.Write(c, fds[1], []byte("pong"), 0)
			if err == nil && n != 4 {
				err = errors.New("short write")
			}
			res <- err
		})
		select {
		case err := <-res:
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("write never resumed")
		}

		buf := make([]byte, 16)
		n, err := unix.Read(fds[0], buf)
		if err != nil || string(buf[:n]) != "pong" {
			t.Fatalf("read back: %q, %v", buf[:n], err)
		}
	})

	t.Run("LinkTimeoutOnEmptyPipe", func(t *testing.T) {
		var fds [2]int
		if err := unix.Pipe(fds[:]); err != nil {
			t.Fatalf("pipe: %v", err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		res := make(chan error, 1)
		coro.Go(func(c *coro.Coroutine) {
			buf := make([]byte, 16)
			_, err := x.ReadTimeout(c, fds[0], buf, 0, 5*time.Millisecond)
			res <- err
		})

		select {
		case err := <-res:
			if !errors.Is(err, aio.ErrTimeout) {
				t.Fatalf("ReadTimeout: got %v, want ErrTimeout", err)
			}
			if aio.Code(err) != aio.CodeTimeout {
				t.Fatalf("Code: got %d, want %d", aio.Code(err), aio.CodeTimeout)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed-out read never resumed")
		}
	})

	t.Run("LinkTimeoutDataWins", func(t *testing.T) {
		var fds [2]int
		if err := unix.Pipe(fds[:]); err != nil {
			t.Fatalf("pipe: %v", err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])
		if _, err := unix.Write(fds[1], []byte("fast")); err != nil {
			t.Fatalf("write: %v", err)
		}

		res := make(chan int, 1)
		coro.Go(func(c *coro.Coroutine) {
			buf := make([]byte, 16)
			n, err := x.ReadTimeout(c, fds[0], buf, 0, time.Second)
			if err != nil {
				n = -1
			}
			res <- n
		})
		select {
		case n := <-res:
			if n != 4 {
				t.Fatalf("ReadTimeout with data: got %d, want 4", n)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("read never resumed")
		}
	})

	t.Run("StopCompletesPending", func(t *testing.T) {
		var fds [2]int
		if err := unix.Pipe(fds[:]); err != nil {
			t.Fatalf("pipe: %v", err)
		}
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		res := make(chan int, 1)
		coro.Go(func(c *coro.Coroutine) {
			buf := make([]byte, 16)
			n, err := x.Read(c, fds[0], buf, 0)
			if err != nil {
				n = -1
			}
			res <- n
		})

		// Give the submitter time to push the read into the kernel, then
		// stop the context with the read still in flight.
		time.Sleep(100 * time.Millisecond)
		x.RequestStop()

		// Satisfying the read lets the drain deliver its completion.
		if _, err := unix.Write(fds[1], []byte("bye")); err != nil {
			t.Fatalf("write: %v", err)
		}

		select {
		case n := <-res:
			if n != 3 {
				t.Fatalf("pending read after stop: got %d, want 3", n)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("pending read never resumed after stop")
		}

		select {
		case <-runDone:
		case <-time.After(5 * time.Second):
			t.Fatal("listener did not exit after drain")
		}

		// The context is now closed: new submissions are refused.
		res2 := make(chan error, 1)
		coro.Go(func(c *coro.Coroutine) {
			buf := make([]byte, 4)
			_, err := x.Read(c, fds[0], buf, 0)
			res2 <- err
		})
		select {
		case err := <-res2:
			if !errors.Is(err, aio.ErrClosed) {
				t.Fatalf("post-stop Read: got %v, want ErrClosed", err)
			}
			if aio.Code(err) != aio.CodeCtxClosed {
				t.Fatalf("Code: got %d, want %d", aio.Code(err), aio.CodeCtxClosed)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("post-stop read never returned")
		}
	})
}
