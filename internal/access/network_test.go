package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsideNetwork_PrivateRanges(t *testing.T) {
	tests := []struct {
		name   string
		ip     string
		inside bool
	}{
		{"loopback", "127.0.0.1", true},
		{"loopback ipv6", "::1", true},
		{"ten range", "10.0.0.5", true},
		{"one seventy two range", "172.16.4.20", true},
		{"home range", "192.168.1.100", true},
		{"public address", "8.8.8.8", false},
		{"other 192 subnet", "192.169.1.1", false},
		{"public ipv6", "2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, InsideNetwork(tt.ip))
		})
	}
}

func TestInsideNetwork_FailOpen(t *testing.T) {
	// Missing or garbage addresses classify as inside.
	assert.True(t, InsideNetwork(""))
	assert.True(t, InsideNetwork("   "))
	assert.True(t, InsideNetwork("not-an-ip"))
}

func TestInsideNetwork_StripsPort(t *testing.T) {
	assert.True(t, InsideNetwork("192.168.1.1:54321"))
	assert.False(t, InsideNetwork("8.8.8.8:443"))
}
