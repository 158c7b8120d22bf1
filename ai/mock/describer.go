package mock

import (
	"context"
	"fmt"
	"sync"
)

// MockDescriber is a test double for ai.Describer.
// It allows custom behavior injection via function fields.
type MockDescriber struct {
	// DescribeFunc is called by Describe if set.
	// If nil, uses default deterministic behavior.
	DescribeFunc func(ctx context.Context, image []byte, contentType string) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockDescriber creates a mock describer with default deterministic behavior.
func NewMockDescriber() *MockDescriber {
	return &MockDescriber{}
}

// Describe returns a deterministic description derived from the image size.
func (m *MockDescriber) Describe(ctx context.Context, image []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, image, contentType)
	}

	return fmt.Sprintf("mock description of %d-byte %s image", len(image), contentType), nil
}

// CallCount returns the number of times Describe was called.
func (m *MockDescriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockDescriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.DescribeFunc = nil
}
