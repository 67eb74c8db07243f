package detection

import (
	"errors"
	"sync"
)

// ErrMockExhausted is returned when a scripted mock runs out of responses.
var ErrMockExhausted = errors.New("detection: mock has no more responses")

// MockDetector is a scripted Detector for tests. Responses are returned in
// order; once exhausted it keeps returning the last response, or
// ErrMockExhausted if configured strict.
type MockDetector struct {
	mu        sync.Mutex
	responses [][]Observation
	errs      []error
	calls     int
	strict    bool
	closed    bool
}

// NewMock creates a mock that cycles through the given responses.
func NewMock(responses ...[]Observation) *MockDetector {
	return &MockDetector{responses: responses}
}

// Strict makes the mock error once its script is exhausted.
func (m *MockDetector) Strict() *MockDetector {
	m.strict = true
	return m
}

// FailWith appends an error response to the script.
func (m *MockDetector) FailWith(err error) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	for len(m.errs) < len(m.responses)-1 {
		m.errs = append(m.errs, nil)
	}
	m.errs = append(m.errs, err)
	return m
}

// Detect returns the next scripted response.
func (m *MockDetector) Detect(jpeg []byte) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++

	if idx >= len(m.responses) {
		if m.strict {
			return nil, ErrMockExhausted
		}
		if len(m.responses) == 0 {
			return nil, nil
		}
		idx = len(m.responses) - 1
	}

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	return m.responses[idx], nil
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
