// Package timer runs named periodic alarms.
package timer

import (
	"slices"
	"sync"
	"time"
)

type alarm struct {
	period time.Duration
	stop   chan struct{}
}

// Scheduler keeps at most one alarm per name. Callbacks run on the alarm's
// goroutine and should return quickly.
type Scheduler struct {
	mu        sync.Mutex
	alarms    map[string]*alarm
	callbacks map[string][]func(name string)
	wg        sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		alarms:    make(map[string]*alarm),
		callbacks: make(map[string][]func(string)),
	}
}

// Schedule starts firing name every period, replacing any existing alarm with that name.
func (s *Scheduler) Schedule(name string, period time.Duration) {
	if period <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.alarms[name]; ok {
		close(old.stop)
	}
	a := &alarm{period: period, stop: make(chan struct{})}
	s.alarms[name] = a

	s.wg.Add(1)
	go s.run(name, a)
}

// OnFire registers a callback for name. Callbacks survive Schedule and Clear.
func (s *Scheduler) OnFire(name string, cb func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[name] = append(s.callbacks[name], cb)
}

// Clear stops the alarm for name. It reports whether one was running.
func (s *Scheduler) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[name]
	if !ok {
		return false
	}
	close(a.stop)
	delete(s.alarms, name)
	return true
}

// Period returns the current period of name, or zero if it is not scheduled.
func (s *Scheduler) Period(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alarms[name]; ok {
		return a.period
	}
	return 0
}

// Stop clears every alarm and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for name, a := range s.alarms {
		close(a.stop)
		delete(s.alarms, name)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(name string, a *alarm) {
	defer s.wg.Done()

	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			cbs := slices.Clone(s.callbacks[name])
			s.mu.Unlock()

			for _, cb := range cbs {
				cb(name)
			}
		}
	}
}
