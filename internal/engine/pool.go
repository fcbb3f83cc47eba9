package engine

import "sync"

// Job is one unit of pool work. worker is the 0-based id of the worker
// running it; jobs use it to pick private scratch resources.
type Job func(worker int)

// Pool is a fixed set of long-lived workers fed by a FIFO queue under one
// mutex. Submit blocks while more than limit jobs are waiting.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Job
	workers  int
	limit    int
	started  bool
	stopping bool
	wg       sync.WaitGroup
}

// NewPool returns a pool of workers goroutines that lets at most
// queueFactor*workers jobs wait.
func NewPool(workers, queueFactor int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueFactor < 1 {
		queueFactor = 1
	}
	p := &Pool{workers: workers, limit: queueFactor * workers}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

// Start launches the workers. Later calls do nothing.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for id := 0; id < p.workers; id++ {
		p.wg.Add(1)
		go p.work(id)
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.cond.Broadcast()
		p.mu.Unlock()

		job(id)
	}
}

// Submit queues job, blocking while the queue is over its limit.
// It returns ErrPoolStopped once Stop has been called.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) >= p.limit && !p.stopping {
		p.cond.Wait()
	}
	if p.stopping {
		return ErrPoolStopped
	}
	p.queue = append(p.queue, job)
	p.cond.Broadcast()
	return nil
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stop refuses new work, lets the workers drain the queue and finish their
// running jobs, and waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopping = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
