package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "u***@*******.com"},
		{"a@b.io", "a@*.io"},
		{"not-an-email", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedEmail(tt.in), tt.in)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("identifier=user%40example.com&limit=10"))
	assert.True(t, SanitizeQueryString("token=abc"))
	assert.False(t, SanitizeQueryString("ip=1.2.3.4&window_minutes=60"))
}

func TestSanitizedIdentifier(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedIdentifier("user@example.com"))
	assert.Equal(t, "alice", SanitizedIdentifier("alice"))
	assert.Equal(t, "10.0.0.1", SanitizedIdentifier("10.0.0.1"))
}
