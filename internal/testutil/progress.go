// Package testutil provides test utilities for progress tracking.
package testutil

import (
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

var _ s3types.ProgressTracker = (*MockProgressTracker)(nil)

// MockProgressTracker is a mock implementation of ProgressTracker for testing.
type MockProgressTracker struct {
	mu             sync.Mutex
	Reports        []s3types.PageReport
	CompleteCalled bool
	ErrorCalled    bool
	LastError      error
}

// PageDone records a page report.
func (m *MockProgressTracker) PageDone(report s3types.PageReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, report)
}

// Complete marks the scrub as complete.
func (m *MockProgressTracker) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalled = true
}

// Error records an error.
func (m *MockProgressTracker) Error(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCalled = true
	m.LastError = err
}
