package sigptr

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/hupe1980/sigptr/word"
)

// Pointer is a signed pointer to a T held in a Heap.
//
// Every access goes through a validation gate: the word must be signed, its
// checksum must match the heap's checksum of the address, and (with
// WithLivenessCheck) the address must be a live allocation. A pointer that
// fails the gate behaves as empty.
//
// The zero Pointer is the signed empty pointer. Pointers are values; copies
// share the pointee but not the word.
type Pointer[T any] struct {
	heap *Heap
	// raw is the word XORed with word.Empty, so the zero value decodes as signed empty.
	raw word.Word
}

// Null returns the signed empty pointer bound to h.
func Null[T any](h *Heap) Pointer[T] {
	return Pointer[T]{heap: h}
}

// From signs an existing address.
//
// The address is not required to come from the heap's allocator; with the
// liveness check enabled such a pointer will not resolve. Address 0 yields Null.
func From[T any](h *Heap, addr uintptr) (Pointer[T], error) {
	if addr == 0 {
		return Null[T](h), nil
	}
	if h == nil {
		return Pointer[T]{}, &PointerError{Op: "from", Word: word.Pack(uint64(addr), false, 0), Err: ErrNoHeap}
	}
	if !word.FitsValue(uint64(addr)) {
		return Pointer[T]{}, fmt.Errorf("%w: %#x", ErrNonCanonical, addr)
	}
	return fromWord[T](h, h.sign(addr)), nil
}

// FromWord rebuilds a pointer from a word obtained with Word.
// The word is taken verbatim; it is validated on use.
func FromWord[T any](h *Heap, w word.Word) Pointer[T] {
	return fromWord[T](h, w)
}

func fromWord[T any](h *Heap, w word.Word) Pointer[T] {
	return Pointer[T]{heap: h, raw: w ^ word.Empty}
}

// Make allocates a T in h and initializes it to v.
func Make[T any](ctx context.Context, h *Heap, v T) (Pointer[T], error) {
	return MakeFunc(ctx, h, func(p *T) error {
		*p = v
		return nil
	})
}

// MakeFunc allocates a zeroed T in h and passes it to init before signing.
// If init fails the memory is released and its error returned.
//
// T must not contain Go pointers (ErrPointerType) and must not be zero-sized (ErrZeroSize).
func MakeFunc[T any](ctx context.Context, h *Heap, init func(*T) error) (Pointer[T], error) {
	if h == nil {
		return Pointer[T]{}, &PointerError{Op: "make", Word: word.Empty, Err: ErrNoHeap}
	}

	start := time.Now()
	l := layoutFor[T]()
	p, addr, err := makeFunc(ctx, h, l, init)

	h.metrics.RecordMake(l.size, time.Since(start), err)
	h.logger.LogMake(ctx, l.name, addr, l.size, err)
	return p, err
}

func makeFunc[T any](ctx context.Context, h *Heap, l layout, init func(*T) error) (Pointer[T], uintptr, error) {
	if l.err != nil {
		return Pointer[T]{}, 0, l.err
	}

	addr, err := h.allocate(ctx, l)
	if err != nil {
		return Pointer[T]{}, 0, &PointerError{Op: "make", Word: word.Empty, Err: err}
	}

	b, ok := h.alloc.View(addr, l.size)
	if !ok {
		relErr := h.alloc.Release(addr, l.blockSize(), l.align)
		return Pointer[T]{}, 0, errors.Join(&PointerError{Op: "make", Word: word.Pack(uint64(addr), false, 0), Err: ErrUnreadable}, relErr)
	}

	if init != nil {
		if err := init((*T)(unsafe.Pointer(&b[0]))); err != nil {
			relErr := h.release(addr, l)
			return Pointer[T]{}, 0, errors.Join(err, relErr)
		}
	}

	h.markLive(addr)
	return fromWord[T](h, h.sign(addr)), addr, nil
}

// Word returns the packed word.
func (p Pointer[T]) Word() word.Word {
	return p.raw ^ word.Empty
}

// Heap returns the heap the pointer is bound to.
func (p Pointer[T]) Heap() *Heap {
	return p.heap
}

// check runs the validation gate for a pointee of layout l.
// The returned error is the bare cause.
func (p Pointer[T]) check(l layout) (uintptr, error) {
	addr, err := p.heap.verify(p.Word())
	if err != nil {
		return 0, err
	}
	if l.align > 0 && addr%uintptr(l.align) != 0 {
		return 0, ErrMisaligned
	}
	return addr, nil
}

func (p Pointer[T]) resolve(op string, l layout) (uintptr, error) {
	addr, err := p.check(l)
	if err != nil {
		err = invalid(op, p.Word(), err)
	}
	p.heap.report(context.Background(), op, l.name, p.Word(), err)
	return addr, err
}

// pointee materializes the T at a validated address.
func (p Pointer[T]) pointee(addr uintptr, l layout) (*T, bool) {
	if l.size == 0 {
		return nil, false
	}
	b, ok := p.heap.alloc.View(addr, l.size)
	if !ok {
		return nil, false
	}
	return (*T)(unsafe.Pointer(&b[0])), true
}

// Addr returns the validated address. It returns (0, false) for the empty
// pointer and for any pointer that fails validation.
func (p Pointer[T]) Addr() (uintptr, bool) {
	addr, err := p.resolve("addr", layoutFor[T]())
	return addr, err == nil
}

// Resolve returns a Go pointer to the pointee, or (nil, false) if validation fails.
//
// The returned pointer is valid until the pointee is destroyed or the heap is
// closed. In content mode, writes to the first 8 bytes invalidate p; see Update.
func (p Pointer[T]) Resolve() (*T, bool) {
	l := layoutFor[T]()
	addr, err := p.resolve("resolve", l)
	if err != nil {
		return nil, false
	}
	return p.pointee(addr, l)
}

// Load returns a copy of the pointee.
// It fails with an error wrapping ErrInvalidPointer and the cause.
func (p Pointer[T]) Load() (T, error) {
	var zero T
	l := layoutFor[T]()
	addr, err := p.resolve("load", l)
	if err != nil {
		return zero, err
	}
	v, ok := p.pointee(addr, l)
	if !ok {
		return zero, invalid("load", p.Word(), ErrUnreadable)
	}
	return *v, nil
}

// Update applies fn to the pointee and re-signs p.
//
// In content mode other copies of p stop resolving if fn changes the first
// 8 bytes; in address mode they are unaffected.
func (p *Pointer[T]) Update(fn func(*T)) error {
	l := layoutFor[T]()
	addr, err := p.resolve("update", l)
	if err != nil {
		return err
	}
	v, ok := p.pointee(addr, l)
	if !ok {
		return invalid("update", p.Word(), ErrUnreadable)
	}
	fn(v)
	p.raw = p.heap.sign(addr) ^ word.Empty
	return nil
}

// Valid reports whether p passes validation.
func (p Pointer[T]) Valid() bool {
	_, ok := p.Addr()
	return ok
}

// Err returns nil if p is valid, or an error wrapping ErrInvalidPointer and
// the reason it is not.
func (p Pointer[T]) Err() error {
	if _, err := p.check(layoutFor[T]()); err != nil {
		return invalid("check", p.Word(), err)
	}
	return nil
}

// Destroy poisons and releases the pointee and resets p to the signed empty pointer.
//
// Destroy releases memory only if p passes validation and its address is a
// live allocation of the heap, so it is a no-op for the empty pointer, for
// corrupted words, for copies whose pointee was already destroyed, and for
// addresses signed with From. A stale copy can still free a new pointee
// once the arena has reused its block; see WithQuarantine. p is reset in
// every case. An allocator error
// is returned after the reset.
func (p *Pointer[T]) Destroy() error {
	h := p.heap
	w := p.Word()
	p.raw = 0

	if h == nil {
		return nil
	}

	ctx := context.Background()
	l := layoutFor[T]()

	addr, err := p.heap.verify(w)
	if err != nil {
		h.report(ctx, "destroy", l.name, w, err)
		h.metrics.RecordDestroy(false, nil)
		return nil
	}
	if l.err != nil || !h.unmarkLive(addr) {
		h.metrics.RecordDestroy(false, nil)
		return nil
	}

	if err := h.release(addr, l); err != nil {
		err = &PointerError{Op: "destroy", Word: w, Err: err}
		h.metrics.RecordDestroy(true, err)
		h.logger.LogDestroy(ctx, l.name, addr, err)
		return err
	}
	h.metrics.RecordDestroy(true, nil)
	h.logger.LogDestroy(ctx, l.name, addr, nil)
	return nil
}

// String formats p as "Pointer[T](word)".
func (p Pointer[T]) String() string {
	return "Pointer[" + layoutFor[T]().name + "](" + p.Word().String() + ")"
}
