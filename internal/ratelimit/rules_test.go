package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		check     func(t *testing.T, rules Rules)
		expectErr bool
	}{
		{
			name: "Overrides one class and keeps the rest",
			data: "classes:\n  payout_request:\n    requests: 3\n    window: 12h\n",
			check: func(t *testing.T, rules Rules) {
				assert.Equal(t, Rule{Class: ClassPayoutRequest, Requests: 3, Window: 12 * time.Hour}, rules[ClassPayoutRequest])
				assert.Equal(t, DefaultRules()[ClassAPI], rules[ClassAPI])
			},
		},
		{
			name: "Adds a class",
			data: "classes:\n  webhook:\n    requests: 50\n    window: 1m\n",
			check: func(t *testing.T, rules Rules) {
				assert.Len(t, rules, 5)
				assert.Equal(t, 50, rules["webhook"].Requests)
			},
		},
		{name: "Bad yaml", data: "classes: [", expectErr: true},
		{name: "Zero requests", data: "classes:\n  api:\n    requests: 0\n    window: 1m\n", expectErr: true},
		{name: "Bad window", data: "classes:\n  api:\n    requests: 1\n    window: soon\n", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules([]byte(tt.data), DefaultRules())
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, rules)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes:\n  export:\n    requests: 2\n    window: 30m\n"), 0o600))

	rules, err := LoadRules(path, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, 2, rules[ClassExport].Requests)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"), DefaultRules())
	assert.Error(t, err)
}
