package andersen

import (
	"fmt"

	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/internal/queue"
	"golang.org/x/tools/container/intsets"
)

// WorklistOrder selects the order in which pending propagations are
// processed. The fixpoint does not depend on it, only the amount of work.
type WorklistOrder int

const (
	FIFO WorklistOrder = iota
	LIFO
)

func (o WorklistOrder) String() string {
	switch o {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return fmt.Sprintf("WorklistOrder(%d)", int(o))
	}
}

// entry is a propagation obligation: objs must flow into pointer.
type entry struct {
	pointer Pointer
	objs    *intsets.Sparse
}

// worklist merges obligations for the same pointer: while a pointer is
// pending, further entries for it are unioned into the pending set instead of
// being queued again.
type worklist struct {
	order   WorklistOrder
	queue   queue.Queue[Pointer]
	pending map[Pointer]*intsets.Sparse

	// Number of entries handed out by pollEntry.
	polled int
}

func newWorklist(order WorklistOrder) *worklist {
	return &worklist{
		order:   order,
		pending: make(map[Pointer]*intsets.Sparse),
	}
}

// addEntry schedules objs for propagation into p. The set is copied, so the
// caller may keep mutating it.
func (w *worklist) addEntry(p Pointer, objs *intsets.Sparse) {
	if objs.IsEmpty() {
		return
	}

	if set, found := w.pending[p]; found {
		set.UnionWith(objs)
		return
	}

	set := new(intsets.Sparse)
	set.Copy(objs)
	w.pending[p] = set
	w.queue.Push(p)
}

func (w *worklist) addObj(p Pointer, o *heap.Obj) {
	var s intsets.Sparse
	s.Insert(o.ID())
	w.addEntry(p, &s)
}

func (w *worklist) isEmpty() bool {
	return w.queue.Empty()
}

func (w *worklist) pollEntry() entry {
	var p Pointer
	if w.order == LIFO {
		p = w.queue.PopBack()
	} else {
		p = w.queue.Pop()
	}

	objs := w.pending[p]
	delete(w.pending, p)
	w.polled++
	return entry{pointer: p, objs: objs}
}
