package voxelrender

import (
	"container/heap"
	"sync"
)

// GenRequest asks the generation worker to produce one chunk. Lower
// priority values are generated first; the ticket systems use the
// chunk's distance from the ticket seed so the area fills middle out.
type GenRequest struct {
	Priority int32
	World    EntityId
	Pos      Position
	Type     WorldType
}

// GenResult is a finished generation request.
type GenResult struct {
	World EntityId
	Pos   Position
	Chunk *Chunk
	Err   error
}

type genKey struct {
	world EntityId
	pos   Position
}

type genQueue []GenRequest

func (q genQueue) Len() int           { return len(q) }
func (q genQueue) Less(i, j int) bool { return q[i].Priority < q[j].Priority }
func (q genQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *genQueue) Push(x any)        { *q = append(*q, x.(GenRequest)) }
func (q *genQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// GenWorker generates chunks on a background goroutine, highest
// priority first. Submitting a request for a position that is already
// queued or being generated is a no-op; the in-flight mark is only
// cleared when the result is drained, so a position cannot be generated
// twice even if it is resubmitted while its result is waiting.
type GenWorker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    genQueue
	inflight map[genKey]struct{}
	results  []GenResult
	closed   bool

	reg   *VoxelRegistry
	codec *Codec

	done chan struct{}
}

func NewGenWorker(reg *VoxelRegistry, codec *Codec) *GenWorker {
	w := &GenWorker{
		inflight: make(map[genKey]struct{}),
		reg:      reg,
		codec:    codec,
		done:     make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Submit queues a generation request. Duplicate positions are dropped.
func (w *GenWorker) Submit(req GenRequest) {
	key := genKey{world: req.World, pos: req.Pos}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.inflight[key]; ok {
		return
	}
	w.inflight[key] = struct{}{}
	heap.Push(&w.queue, req)
	w.cond.Signal()
}

// Drain returns the finished results accumulated since the last call.
func (w *GenWorker) Drain() []GenResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	results := w.results
	w.results = nil
	for _, res := range results {
		delete(w.inflight, genKey{world: res.World, pos: res.Pos})
	}
	return results
}

// Pending is the number of queued plus in-progress requests.
func (w *GenWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight) - len(w.results)
}

// Close stops the worker goroutine and waits for it to exit.
func (w *GenWorker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.cond.Signal()
	w.mu.Unlock()
	<-w.done
}

func (w *GenWorker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			w.mu.Unlock()
			return
		}
		req := heap.Pop(&w.queue).(GenRequest)
		w.mu.Unlock()

		voxels, meta, err := req.Type.Generate(req.Pos, w.reg)
		res := GenResult{World: req.World, Pos: req.Pos, Err: err}
		if err == nil {
			res.Chunk = NewChunk(voxels, meta, w.codec)
		}

		w.mu.Lock()
		w.results = append(w.results, res)
		w.mu.Unlock()
	}
}
