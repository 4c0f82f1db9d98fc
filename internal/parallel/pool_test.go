package parallel

import (
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Create(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	if p.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", p.Workers())
	}
	if p.closed {
		t.Error("pool should be running after creation")
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		p := NewPool(n)
		if p.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewPool(%d).Workers() = %d, want GOMAXPROCS", n, p.Workers())
		}
		p.Close()
	}
}

func TestPool_Run(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var count atomic.Int64
	tasks := make([]func(), 100)
	for i := range tasks {
		tasks[i] = func() { count.Add(1) }
	}
	p.Run(tasks)

	if got := count.Load(); got != 100 {
		t.Errorf("ran %d tasks, want 100", got)
	}
}

func TestPool_RunDisjointWrites(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	out := make([]int, 64)
	var tasks []func()
	for _, b := range Bands(image.Rect(0, 0, 1, len(out)), 8, 1) {
		tasks = append(tasks, func() {
			for y := b.Min.Y; y < b.Max.Y; y++ {
				out[y] = y * 2
			}
		})
	}
	p.Run(tasks)

	for i, v := range out {
		if v != i*2 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestPool_RunAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()

	if !p.closed {
		t.Error("pool should be closed after Close")
	}
	var count atomic.Int64
	p.Run([]func(){func() { count.Add(1) }, func() { count.Add(1) }})
	if count.Load() != 2 {
		t.Errorf("closed pool ran %d tasks, want 2", count.Load())
	}
}

func TestPool_RunRacingClose(t *testing.T) {
	for range 50 {
		p := NewPool(4)
		var count atomic.Int64
		tasks := make([]func(), 64)
		for i := range tasks {
			tasks[i] = func() { count.Add(1) }
		}

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Run(tasks)
			}()
		}
		p.Close()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after a concurrent Close")
		}
		if got := count.Load(); got != 4*64 {
			t.Fatalf("ran %d tasks, want %d", got, 4*64)
		}
	}
}

func TestPool_RunEmpty(t *testing.T) {
	p := NewPool(2)
	defer p.Close()
	p.Run(nil)
}

func TestBands(t *testing.T) {
	tests := []struct {
		name    string
		r       image.Rectangle
		n, min  int
		want    int
		heights []int
	}{
		{"even", image.Rect(0, 0, 10, 8), 4, 1, 4, []int{2, 2, 2, 2}},
		{"remainder", image.Rect(0, 2, 10, 12), 3, 1, 3, []int{4, 3, 3}},
		{"min rows", image.Rect(0, 0, 10, 10), 8, 4, 2, []int{5, 5}},
		{"short", image.Rect(0, 0, 10, 2), 8, 16, 1, []int{2}},
		{"empty", image.Rectangle{}, 4, 1, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bands := Bands(tt.r, tt.n, tt.min)
			if len(bands) != tt.want {
				t.Fatalf("got %d bands, want %d", len(bands), tt.want)
			}
			y := tt.r.Min.Y
			for i, b := range bands {
				if b.Min.Y != y || b.Dy() != tt.heights[i] {
					t.Errorf("band %d = %v, want start %d height %d", i, b, y, tt.heights[i])
				}
				if b.Min.X != tt.r.Min.X || b.Max.X != tt.r.Max.X {
					t.Errorf("band %d = %v, want the full width of %v", i, b, tt.r)
				}
				y = b.Max.Y
			}
			if len(bands) > 0 && y != tt.r.Max.Y {
				t.Errorf("bands end at %d, want %d", y, tt.r.Max.Y)
			}
		})
	}
}
