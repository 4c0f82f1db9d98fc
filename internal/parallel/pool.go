// Package parallel runs the row bands of the software rasterizer on a
// fixed set of goroutines.
package parallel

import (
	"image"
	"runtime"
	"sync"
)

// Pool is a fixed set of worker goroutines. Each worker owns a queue and
// steals from the others when its own queue is empty, which keeps bands of
// uneven cost balanced.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup

	// mu guards closed. Run holds it shared while queueing so Close cannot
	// stop the workers between the check and the send.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool with the given number of workers. If workers is 0
// or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
			continue
		default:
		}

		if task := p.steal(id); task != nil {
			task()
			continue
		}

		select {
		case <-p.done:
			drain(own)
			return
		case task := <-own:
			task()
		}
	}
}

func drain(queue chan func()) {
	for {
		select {
		case task := <-queue:
			task()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case task := <-p.queues[i]:
			return task
		default:
		}
	}
	return nil
}

// Run executes every task and returns when all of them have finished.
// Tasks are spread round-robin over the workers. On a closed pool the
// tasks run on the calling goroutine.
func (p *Pool) Run(tasks []func()) {
	if len(tasks) == 0 {
		return
	}
	if len(tasks) == 1 {
		tasks[0]()
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		for _, task := range tasks {
			task()
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		p.queues[i%p.workers] <- func() {
			defer wg.Done()
			task()
		}
	}
	p.mu.RUnlock()
	wg.Wait()
}

// Close stops the workers after the queued tasks have run. Close is safe
// to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Bands splits r into at most n horizontal bands of at least minRows rows
// each. The bands cover r exactly, top to bottom.
func Bands(r image.Rectangle, n, minRows int) []image.Rectangle {
	if r.Empty() {
		return nil
	}
	minRows = max(minRows, 1)
	h := r.Dy()
	n = max(min(n, h/minRows), 1)

	bands := make([]image.Rectangle, 0, n)
	y := r.Min.Y
	for i := range n {
		rows := h / n
		if i < h%n {
			rows++
		}
		bands = append(bands, image.Rect(r.Min.X, y, r.Max.X, y+rows))
		y += rows
	}
	return bands
}
