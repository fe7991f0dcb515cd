package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by explicit Advance calls. Time only moves
// when the test says so, and due callbacks run serially in due order, which
// mirrors the single-threaded callback ordering the real scheduler provides.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	seq       int
	due       time.Time
	interval  time.Duration // zero for one-shot tasks
	fn        func()
	cancelled bool
}

// NewManual creates a Manual scheduler positioned at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Repeating(interval time.Duration, fn func()) CancelFunc {
	if interval <= 0 {
		interval = time.Second
	}
	return m.add(interval, interval, fn)
}

func (m *Manual) Once(delay time.Duration, fn func()) CancelFunc {
	if delay < 0 {
		delay = 0
	}
	return m.add(delay, 0, fn)
}

func (m *Manual) add(delay, interval time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &manualTask{
		seq:      m.seq,
		due:      m.now.Add(delay),
		interval: interval,
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		task.cancelled = true
	}
}

// Advance moves the clock forward by d, firing every due callback in due
// order. Callbacks scheduled while advancing fire too if they fall within
// the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for {
		task := m.nextDueLocked(target)
		if task == nil {
			break
		}
		if task.due.After(m.now) {
			m.now = task.due
		}
		if task.interval > 0 {
			task.due = task.due.Add(task.interval)
		} else {
			m.removeLocked(task)
		}
		fn := task.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// Jump moves the clock forward by d without firing anything, simulating a
// suspended process whose timers never ran.
func (m *Manual) Jump(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	for _, task := range m.tasks {
		if task.interval > 0 && task.due.Before(m.now) {
			task.due = m.now.Add(task.interval)
		}
	}
	m.mu.Unlock()
}

func (m *Manual) nextDueLocked(target time.Time) *manualTask {
	live := m.tasks[:0]
	for _, task := range m.tasks {
		if !task.cancelled {
			live = append(live, task)
		}
	}
	m.tasks = live

	sort.SliceStable(m.tasks, func(i, j int) bool {
		if m.tasks[i].due.Equal(m.tasks[j].due) {
			return m.tasks[i].seq < m.tasks[j].seq
		}
		return m.tasks[i].due.Before(m.tasks[j].due)
	})

	for _, task := range m.tasks {
		if !task.due.After(target) {
			return task
		}
	}
	return nil
}

func (m *Manual) removeLocked(task *manualTask) {
	for i, candidate := range m.tasks {
		if candidate == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}
