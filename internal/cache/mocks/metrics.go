package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/newsfeed/internal/cache"
)

// Metrics is a mock implementation of cache.Metrics
type Metrics struct {
	mock.Mock
}

func (m *Metrics) Hit()       { m.Called() }
func (m *Metrics) Miss()      { m.Called() }
func (m *Metrics) Coalesced() { m.Called() }

func (m *Metrics) Evict(reason cache.EvictReason) {
	m.Called(reason)
}

func (m *Metrics) Size(entries int, cost int64) {
	m.Called(entries, cost)
}

var _ cache.Metrics = (*Metrics)(nil)
