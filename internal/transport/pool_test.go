package transport

import (
	"context"
	"testing"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

func newTestMemoryTransport() StreamingTransport {
	tr := NewMemoryTransport(fakeDispatcher{fn: func(command.ParsedCommand) result.CommandResult {
		return result.Ok(nil)
	}})
	_ = tr.Connect(context.Background())
	return tr
}

func TestPool_GetCreatesUpToMaxSize(t *testing.T) {
	created := 0
	p := NewPool(func() (StreamingTransport, error) {
		created++
		return newTestMemoryTransport(), nil
	}, 2, time.Second)

	ctx := context.Background()
	a, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	p.Put(a)
	p.Put(b)
}

func TestPool_GetReusesPutConnection(t *testing.T) {
	created := 0
	p := NewPool(func() (StreamingTransport, error) {
		created++
		return newTestMemoryTransport(), nil
	}, 1, time.Second)

	ctx := context.Background()
	a, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	p.Put(a)

	b, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (connection reused)", created)
	}
	p.Put(b)
}

func TestPool_GetExhaustedTimesOut(t *testing.T) {
	p := NewPool(func() (StreamingTransport, error) {
		return newTestMemoryTransport(), nil
	}, 1, 30*time.Millisecond)

	ctx := context.Background()
	a, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	_, err = p.Get(ctx)
	if err != ErrPoolExhausted {
		t.Fatalf("Get() error = %v, want ErrPoolExhausted", err)
	}
	p.Put(a)
}

func TestPool_PutWakesWaiter(t *testing.T) {
	p := NewPool(func() (StreamingTransport, error) {
		return newTestMemoryTransport(), nil
	}, 1, 2*time.Second)

	ctx := context.Background()
	a, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Get(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Put(a)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiting Get() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting Get() never woke up after Put")
	}
}
