package trades

// Ring is a growable FIFO ring buffer. Capacity is kept at a power of two
// so positions wrap with a mask.
type Ring[T any] struct {
	head uint64 // next write position
	tail uint64 // oldest element
	buf  []T
	mask uint64
}

func NewRing[T any](size uint64) *Ring[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("trades.Ring size must be a power of two")
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}
}

func (r *Ring[T]) Len() int {
	return int(r.head - r.tail)
}

func (r *Ring[T]) PushBack(v T) {
	if r.head-r.tail == uint64(len(r.buf)) {
		r.grow()
	}
	r.buf[r.head&r.mask] = v
	r.head++
}

// Front returns the oldest element without removing it.
func (r *Ring[T]) Front() (T, bool) {
	var zero T
	if r.head == r.tail {
		return zero, false
	}
	return r.buf[r.tail&r.mask], true
}

func (r *Ring[T]) PopFront() (T, bool) {
	var zero T
	if r.head == r.tail {
		return zero, false
	}
	v := r.buf[r.tail&r.mask]
	r.buf[r.tail&r.mask] = zero
	r.tail++
	return v, true
}

// Each visits elements oldest first until fn returns false.
func (r *Ring[T]) Each(fn func(T) bool) {
	for i := r.tail; i != r.head; i++ {
		if !fn(r.buf[i&r.mask]) {
			return
		}
	}
}

func (r *Ring[T]) grow() {
	n := r.Len()
	buf := make([]T, len(r.buf)*2)
	for i := 0; i < n; i++ {
		buf[i] = r.buf[(r.tail+uint64(i))&r.mask]
	}
	r.buf = buf
	r.mask = uint64(len(buf)) - 1
	r.tail = 0
	r.head = uint64(n)
}
