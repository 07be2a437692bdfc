package arena

import (
	"context"
	"errors"
	"sync"
	"testing"
	"unsafe"
)

type countingAcquirer struct {
	mu       sync.Mutex
	limit    int64
	acquired int64
}

func (c *countingAcquirer) AcquireMemory(_ context.Context, amount int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.acquired+amount > c.limit {
		return context.DeadlineExceeded
	}
	c.acquired += amount
	return nil
}

func (c *countingAcquirer) ReleaseMemory(amount int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquired -= amount
}

func mustNew(t *testing.T, chunkSize int, opts ...Option) *Arena {
	t.Helper()
	a, err := New(chunkSize, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArena_New(t *testing.T) {
	t.Run("default chunk size", func(t *testing.T) {
		a := mustNew(t, 0)

		if a.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize=%d, got %d", DefaultChunkSize, a.ChunkSize())
		}
		if a.alignment != DefaultAlignment {
			t.Errorf("expected alignment=%d, got %d", DefaultAlignment, a.alignment)
		}
		if a.current.Load() == nil {
			t.Error("current chunk should not be nil")
		}
	})

	t.Run("rounds to power of two", func(t *testing.T) {
		a := mustNew(t, 5000)

		if a.ChunkSize() != 8192 {
			t.Errorf("expected chunkSize=8192, got %d", a.ChunkSize())
		}
	})
}

func TestArena_Allocate(t *testing.T) {
	ctx := context.Background()

	t.Run("basic allocation", func(t *testing.T) {
		a := mustNew(t, 4096)

		addr, err := a.Allocate(ctx, 100, 8)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		view, ok := a.View(addr, 100)
		if !ok {
			t.Fatal("View of fresh allocation failed")
		}
		for i, b := range view {
			if b != 0 {
				t.Errorf("byte at index %d not zero: %d", i, b)
			}
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		a := mustNew(t, 4096)

		if _, err := a.Allocate(ctx, 0, 8); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("expected ErrInvalidSize, got %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		a := mustNew(t, 4096)

		if _, err := a.Allocate(ctx, 8192, 8); !errors.Is(err, ErrTooLarge) {
			t.Errorf("expected ErrTooLarge, got %v", err)
		}
	})

	t.Run("alignment", func(t *testing.T) {
		a := mustNew(t, 4096)

		cases := []struct{ size, align int }{
			{1, 8}, {3, 8}, {5, 16}, {7, 32}, {9, 64}, {17, 8},
		}
		for _, c := range cases {
			addr, err := a.Allocate(ctx, c.size, c.align)
			if err != nil {
				t.Fatalf("allocation failed for size=%d: %v", c.size, err)
			}
			if addr%uintptr(c.align) != 0 {
				t.Errorf("size=%d align=%d addr=%x not aligned", c.size, c.align, addr)
			}
		}
	})

	t.Run("multiple chunks", func(t *testing.T) {
		a := mustNew(t, 128)

		for i := 0; i < 10; i++ {
			if _, err := a.Allocate(ctx, 64, 8); err != nil {
				t.Fatalf("allocation %d failed: %v", i, err)
			}
		}

		stats := a.Stats()
		if stats.ChunksAllocated <= 1 {
			t.Error("expected multiple chunks")
		}
		if stats.TotalAllocs != 10 {
			t.Errorf("expected 10 allocs, got %d", stats.TotalAllocs)
		}
	})

	t.Run("distinct blocks", func(t *testing.T) {
		a := mustNew(t, 4096)

		seen := make(map[uintptr]bool)
		for i := 0; i < 32; i++ {
			addr, err := a.Allocate(ctx, 24, 8)
			if err != nil {
				t.Fatal(err)
			}
			if seen[addr] {
				t.Fatalf("address %x handed out twice", addr)
			}
			seen[addr] = true
		}
	})
}

func TestArena_ReleaseReuse(t *testing.T) {
	ctx := context.Background()
	a := mustNew(t, 4096)

	addr, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	view, _ := a.View(addr, 16)
	view[0] = 0xFF

	if err := a.Release(addr, 16, 8); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := a.Stats().BytesFree; got != 16 {
		t.Errorf("expected 16 free bytes, got %d", got)
	}

	// Different size class is served from the bump pointer.
	other, err := a.Allocate(ctx, 32, 8)
	if err != nil {
		t.Fatal(err)
	}
	if other == addr {
		t.Error("size class 32 must not reuse a 16 byte block")
	}

	again, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if again != addr {
		t.Errorf("expected reuse of %x, got %x", addr, again)
	}
	view, _ = a.View(again, 16)
	if view[0] != 0 {
		t.Error("reused block must be zeroed")
	}

	stats := a.Stats()
	if stats.Reused != 1 || stats.TotalReleases != 1 || stats.BytesFree != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestArena_Quarantine(t *testing.T) {
	ctx := context.Background()
	a := mustNew(t, 4096, WithQuarantine(2))

	first, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Release(first, 16, 8); err != nil {
		t.Fatal(err)
	}

	stats := a.Stats()
	if stats.BytesQuarantined != 16 || stats.BytesFree != 0 {
		t.Errorf("expected block in quarantine, got %+v", stats)
	}

	// While quarantined the address is not handed out again.
	next, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if next == first {
		t.Fatalf("quarantined block %x reused", first)
	}

	// Two later releases push the first block out of the quarantine.
	if err := a.Release(next, 16, 8); err != nil {
		t.Fatal(err)
	}
	third, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Fatalf("block %x reused after one release", first)
	}
	if err := a.Release(third, 16, 8); err != nil {
		t.Fatal(err)
	}

	stats = a.Stats()
	if stats.BytesQuarantined != 32 || stats.BytesFree != 16 {
		t.Errorf("unexpected stats after drain: %+v", stats)
	}

	again, err := a.Allocate(ctx, 16, 8)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Errorf("expected reuse of %x, got %x", first, again)
	}
}

func TestArena_WithAlignment(t *testing.T) {
	ctx := context.Background()
	a := mustNew(t, 4096, WithAlignment(16))

	for range 4 {
		addr, err := a.Allocate(ctx, 3, 1)
		if err != nil {
			t.Fatal(err)
		}
		if addr%16 != 0 {
			t.Errorf("address %x not 16-byte aligned", addr)
		}
	}
	if got := a.Stats().BytesWasted; got != 4*13 {
		t.Errorf("expected %d wasted bytes, got %d", 4*13, got)
	}
}

func TestArena_ReleaseForeign(t *testing.T) {
	a := mustNew(t, 4096)

	var local [16]byte
	foreign := uintptr(unsafe.Pointer(&local[0]))
	if err := a.Release(foreign, 16, 8); !errors.Is(err, ErrForeignAddress) {
		t.Errorf("expected ErrForeignAddress, got %v", err)
	}
	if err := a.Release(0, 16, 8); !errors.Is(err, ErrForeignAddress) {
		t.Errorf("expected ErrForeignAddress for null, got %v", err)
	}
}

func TestArena_View(t *testing.T) {
	ctx := context.Background()
	a := mustNew(t, 4096)

	addr, err := a.Allocate(ctx, 8, 8)
	if err != nil {
		t.Fatal(err)
	}

	if !a.Owns(addr) {
		t.Error("arena should own its allocation")
	}
	if _, ok := a.View(addr, 8); !ok {
		t.Error("view of allocated bytes failed")
	}
	// Beyond the bump pointer is not handed out yet.
	if _, ok := a.View(addr, 64); ok {
		t.Error("view past allocated region should fail")
	}
	if _, ok := a.View(addr, 0); ok {
		t.Error("empty view should fail")
	}
	if a.Owns(0) {
		t.Error("arena must not own the null address")
	}
}

func TestArena_AddressLimit(t *testing.T) {
	// Any real mapping lies above one page.
	_, err := New(4096, WithAddressLimit(4096))
	if !errors.Is(err, ErrAddressLimit) {
		t.Errorf("expected ErrAddressLimit, got %v", err)
	}
}

func TestArena_MemoryAcquirer(t *testing.T) {
	acq := &countingAcquirer{limit: 2 * 4096}
	a, err := New(4096, WithMemoryAcquirer(acq))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := a.Allocate(ctx, 4096, 8); err != nil {
			t.Fatalf("allocation %d: %v", i, err)
		}
	}
	if _, err := a.Allocate(ctx, 4096, 8); err == nil {
		t.Error("expected budget exhaustion")
	}
	if acq.acquired != 2*4096 {
		t.Errorf("expected %d acquired, got %d", 2*4096, acq.acquired)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if acq.acquired != 0 {
		t.Errorf("expected all memory released, got %d", acq.acquired)
	}
}

func TestArena_Close(t *testing.T) {
	a, err := New(4096)
	if err != nil {
		t.Fatal(err)
	}
	addr, err := a.Allocate(context.Background(), 8, 8)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if _, err := a.Allocate(context.Background(), 8, 8); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, ok := a.View(addr, 8); ok {
		t.Error("view after close should fail")
	}
	if err := a.Release(addr, 8, 8); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if a.Stats().ActiveChunks != 0 {
		t.Error("expected no active chunks")
	}
}

func TestArena_Concurrent(t *testing.T) {
	a := mustNew(t, 1024)
	ctx := context.Background()

	const workers, perWorker = 8, 200
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = make(map[uintptr]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uintptr, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				addr, err := a.Allocate(ctx, 16, 8)
				if err != nil {
					t.Error(err)
					return
				}
				local = append(local, addr)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, addr := range local {
				if all[addr] {
					t.Errorf("address %x handed out twice", addr)
				}
				all[addr] = true
			}
		}()
	}
	wg.Wait()

	if len(all) != workers*perWorker {
		t.Errorf("expected %d unique addresses, got %d", workers*perWorker, len(all))
	}
}

func TestArena_String(t *testing.T) {
	a := mustNew(t, 4096)
	if s := a.String(); s == "" {
		t.Error("empty String()")
	}
	if a.Usage() != 0 {
		t.Errorf("expected 0%% usage, got %f", a.Usage())
	}
}

func BenchmarkArena_Allocate(b *testing.B) {
	a, err := New(DefaultChunkSize)
	if err != nil {
		b.Fatal(err)
	}
	defer a.Close()

	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		addr, err := a.Allocate(ctx, 32, 8)
		if err != nil {
			b.Fatal(err)
		}
		_ = a.Release(addr, 32, 8)
	}
}
