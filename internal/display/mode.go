package display

import "sync"

// Mode gates the render loop: while a modal prompt owns the terminal, no
// frames may be painted over it.
type Mode struct {
	mu    sync.Mutex
	modal bool
}

// NewMode creates a Mode with rendering enabled.
func NewMode() *Mode {
	return &Mode{}
}

// EnterModal suspends rendering and returns a release function. The release
// is idempotent; calling it twice is harmless.
func (m *Mode) EnterModal() func() {
	m.mu.Lock()
	m.modal = true
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.modal = false
			m.mu.Unlock()
		})
	}
}

// ModalActive reports whether a modal prompt currently owns the terminal.
func (m *Mode) ModalActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modal
}
