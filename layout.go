package sigptr

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hupe1980/sigptr/checksum"
)

// layout is the memory shape of a pointee type.
type layout struct {
	name  string
	size  int
	align int
	err   error
}

// blockSize is the allocation size: the pointee, widened so the checksum
// window never reads past the block.
func (l layout) blockSize() int {
	return max(l.size, checksum.WindowSize)
}

var layouts sync.Map // reflect.Type -> layout

func layoutFor[T any]() layout {
	t := reflect.TypeFor[T]()
	if v, ok := layouts.Load(t); ok {
		return v.(layout) //nolint:forcetypeassert // only layouts are stored
	}

	l := layout{
		name:  t.String(),
		size:  int(t.Size()), //nolint:gosec // type sizes fit int
		align: t.Align(),
	}
	switch {
	case l.size == 0:
		l.err = fmt.Errorf("%w: %s", ErrZeroSize, l.name)
	case hasPointers(t):
		l.err = fmt.Errorf("%w: %s", ErrPointerType, l.name)
	}

	v, _ := layouts.LoadOrStore(t, l)
	return v.(layout) //nolint:forcetypeassert // only layouts are stored
}

// hasPointers reports whether values of t may hold references the garbage
// collector must trace.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
