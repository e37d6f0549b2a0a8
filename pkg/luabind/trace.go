package luabind

// Direction tells which way a recorded call crossed the boundary.
type Direction uint8

const (
	HostToScript Direction = iota
	ScriptToHost
)

func (d Direction) String() string {
	if d == HostToScript {
		return "host->script"
	}
	return "script->host"
}

// Crossing is one recorded boundary call.
type Crossing struct {
	Dir   Direction
	Name  string
	Depth int
	Args  int
	Err   error
}

// traceRing keeps the most recent crossings, overwriting the oldest once
// full. head and tail grow monotonically and are reduced modulo len(buf).
type traceRing struct {
	buf        []Crossing
	head, tail int64
}

func newTraceRing(size int) *traceRing {
	if size <= 0 {
		return nil
	}
	return &traceRing{buf: make([]Crossing, size)}
}

// add appends c and returns its slot so the caller can fill in Err later.
func (r *traceRing) add(c Crossing) int64 {
	if r == nil {
		return -1
	}
	slot := r.tail
	r.buf[slot%int64(len(r.buf))] = c
	r.tail++
	if r.tail-r.head > int64(len(r.buf)) {
		r.head = r.tail - int64(len(r.buf))
	}
	return slot
}

func (r *traceRing) fail(slot int64, err error) {
	if r == nil || slot < r.head || err == nil {
		return
	}
	r.buf[slot%int64(len(r.buf))].Err = err
}

func (r *traceRing) items() []Crossing {
	if r == nil {
		return nil
	}
	out := make([]Crossing, 0, r.tail-r.head)
	for i := r.head; i < r.tail; i++ {
		out = append(out, r.buf[i%int64(len(r.buf))])
	}
	return out
}
