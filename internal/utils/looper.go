package utils

import (
	"sync"
)

// Looper runs posted tasks one at a time, in order, on a single goroutine.
// It plays the part of the host main thread.
type Looper struct {
	tasks     chan func()
	mu        sync.RWMutex
	quit      bool
	waitGroup sync.WaitGroup
}

// NewLooper starts a Looper whose queue holds up to queueSize pending tasks.
func NewLooper(queueSize int) *Looper {
	l := &Looper{
		tasks: make(chan func(), queueSize),
	}

	l.waitGroup.Add(1)
	go l.loop()

	return l
}

func (l *Looper) loop() {
	defer l.waitGroup.Done()
	for task := range l.tasks {
		task()
	}
}

// Post queues task. It blocks while the queue is full and returns false once
// the looper has quit.
func (l *Looper) Post(task func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.quit {
		return false
	}
	l.tasks <- task
	return true
}

// Quit runs the remaining queued tasks and stops the loop.
func (l *Looper) Quit() {
	l.mu.Lock()
	if l.quit {
		l.mu.Unlock()
		return
	}
	l.quit = true
	close(l.tasks)
	l.mu.Unlock()

	l.waitGroup.Wait()
}
