package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseScriptResult(t *testing.T) {
	reset := time.UnixMilli(1767225600000)

	tests := []struct {
		name      string
		res       any
		expected  Window
		expectErr bool
	}{
		{
			name:     "Admitted",
			res:      []any{int64(1), int64(3), reset.UnixMilli()},
			expected: Window{Admitted: true, Count: 3, ResetAt: reset},
		},
		{
			name:     "Refused",
			res:      []any{int64(0), int64(5), reset.UnixMilli()},
			expected: Window{Admitted: false, Count: 5, ResetAt: reset},
		},
		{name: "Wrong type", res: "OK", expectErr: true},
		{name: "Wrong length", res: []any{int64(1)}, expectErr: true},
		{name: "Wrong element", res: []any{int64(1), "3", int64(0)}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := parseScriptResult(tt.res)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected.Admitted, w.Admitted)
			assert.Equal(t, tt.expected.Count, w.Count)
			assert.True(t, tt.expected.ResetAt.Equal(w.ResetAt))
		})
	}
}

func TestNewRedisStore_RequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestQuotaScriptEmbedded(t *testing.T) {
	assert.Contains(t, quotaLua, "PEXPIREAT")
	assert.Contains(t, quotaLua, "HINCRBY")
}
