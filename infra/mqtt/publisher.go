package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/kilianp07/spotmarket/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Published  map[string]coremqtt.ResultSet
	Fail       bool
	AckResults map[string]bool
	mu         sync.Mutex
	seq        int
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Published:  make(map[string]coremqtt.ResultSet),
		AckResults: make(map[string]bool),
	}
}

// PublishResults records the result set or returns an error if configured to fail.
func (m *MockPublisher) PublishResults(rs coremqtt.ResultSet) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return "", fmt.Errorf("publish failed")
	}
	m.seq++
	runID := fmt.Sprintf("run-%d", m.seq)
	m.Published[runID] = rs
	m.AckResults[runID] = true
	return runID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(runID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[runID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("unknown run")
	}
	return ok, nil
}
