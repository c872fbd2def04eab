package framesock

// accumulator is a fixed-capacity buffer filled across several partial writes.
type accumulator struct {
	data   []byte
	cursor int
}

func newAccumulator(capacity int) *accumulator {
	return &accumulator{data: make([]byte, capacity)}
}

// write copies as much of src as still fits and returns the number of bytes consumed.
func (a *accumulator) write(src []byte) int {
	n := copy(a.data[a.cursor:], src)
	a.cursor += n
	return n
}

// full reports whether the accumulator holds capacity bytes.
func (a *accumulator) full() bool {
	return a.cursor == len(a.data)
}

func (a *accumulator) bytes() []byte {
	return a.data
}
