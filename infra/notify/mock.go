package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/lmoreno87/advmatch/core/waves"
)

// MockNotifier records notices in memory for tests and dry runs.
type MockNotifier struct {
	mu      sync.Mutex
	Notices []waves.WaveNotice
	FailIDs map[string]bool
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{FailIDs: map[string]bool{}}
}

// NotifyWave records the notice or fails for configured request ids.
func (m *MockNotifier) NotifyWave(_ context.Context, n waves.WaveNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[n.RequestID] {
		return fmt.Errorf("notify failed")
	}
	m.Notices = append(m.Notices, n)
	return nil
}

// Sent returns a copy of the recorded notices.
func (m *MockNotifier) Sent() []waves.WaveNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]waves.WaveNotice, len(m.Notices))
	copy(out, m.Notices)
	return out
}
