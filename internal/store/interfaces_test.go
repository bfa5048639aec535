package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	now := time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		storedAt time.Time
		ttl      time.Duration
		want     bool
	}{
		{name: "fresh", storedAt: now.Add(-time.Hour), ttl: DefaultTTL, want: false},
		{name: "exactly at ttl", storedAt: now.Add(-DefaultTTL), ttl: DefaultTTL, want: false},
		{name: "older than ttl", storedAt: now.Add(-DefaultTTL - time.Second), ttl: DefaultTTL, want: true},
		{name: "zero ttl never expires", storedAt: now.Add(-365 * 24 * time.Hour), ttl: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expired(tt.storedAt, now, tt.ttl))
			assert.Equal(t, tt.want, DetailRecord{StoredAt: tt.storedAt}.Expired(now, tt.ttl))
			assert.Equal(t, tt.want, FeedRecord{StoredAt: tt.storedAt}.Expired(now, tt.ttl))
			assert.Equal(t, tt.want, MediaRecord{StoredAt: tt.storedAt}.Expired(now, tt.ttl))
		})
	}
}
