package sigptr

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sigptr/word"
)

var (
	// ErrInvalidPointer is returned when a pointer is used after failed resolution.
	// Every failure cause below is reported wrapped together with it.
	ErrInvalidPointer = errors.New("sigptr: invalid pointer")

	// ErrNilPointer is the cause for the empty pointer.
	ErrNilPointer = errors.New("sigptr: nil pointer")
	// ErrUnsigned is the cause for a word whose signed flag is clear.
	ErrUnsigned = errors.New("sigptr: word not signed")
	// ErrChecksumMismatch is the cause for a word whose checksum no longer matches.
	ErrChecksumMismatch = errors.New("sigptr: checksum mismatch")
	// ErrUnreadable is the cause when the checksum window cannot be read through the allocator.
	ErrUnreadable = errors.New("sigptr: pointee not readable")
	// ErrStale is the cause for an address that is no longer a live allocation.
	ErrStale = errors.New("sigptr: address not live")
	// ErrMisaligned is the cause for an address that is not aligned for the pointee type.
	ErrMisaligned = errors.New("sigptr: address misaligned for type")
	// ErrNoHeap is the cause for a non-empty pointer that is not bound to a heap.
	ErrNoHeap = errors.New("sigptr: pointer not bound to a heap")
	// ErrHeapClosed is returned once the heap has been closed.
	ErrHeapClosed = errors.New("sigptr: heap closed")

	// ErrNonCanonical is returned for addresses that do not fit the 47-bit value field.
	ErrNonCanonical = errors.New("sigptr: address outside canonical range")
	// ErrPointerType is returned by Make for types that contain Go pointers.
	ErrPointerType = errors.New("sigptr: type contains Go pointers")
	// ErrZeroSize is returned by Make for zero-sized types.
	ErrZeroSize = errors.New("sigptr: zero-sized type")
	// ErrInvalidOption is returned by NewHeap for out-of-range options.
	ErrInvalidOption = errors.New("sigptr: invalid option")
)

// PointerError records a failed pointer operation and the word it was applied to.
//
// The underlying cause can be accessed via errors.Unwrap.
type PointerError struct {
	Op   string
	Word word.Word
	Err  error
}

func (e *PointerError) Error() string {
	return fmt.Sprintf("sigptr: %s %s: %v", e.Op, e.Word, e.Err)
}

func (e *PointerError) Unwrap() error { return e.Err }

// isTamper reports whether a resolution failure indicates corruption rather than an empty pointer.
func isTamper(err error) bool {
	return err != nil && !errors.Is(err, ErrNilPointer)
}

func invalid(op string, w word.Word, cause error) error {
	return &PointerError{Op: op, Word: w, Err: fmt.Errorf("%w: %w", ErrInvalidPointer, cause)}
}
