package gate

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain takes first", " 203.0.113.7 , 70.41.3.18, 150.172.238.178", "10.0.0.1:1234", "203.0.113.7"},
		{"empty first entry falls back", " ,70.41.3.18", "10.0.0.1:1234", "10.0.0.1"},
		{"remote with port", "", "192.168.1.5:8080", "192.168.1.5"},
		{"remote ipv6 with port", "", "[::1]:8080", "::1"},
		{"remote without port", "", "192.168.1.5", "192.168.1.5"},
		{"nothing", "", "", UnknownIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.xff != "" {
				h.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ResolveIdentity(h, tt.remoteAddr))
		})
	}

	assert.Equal(t, "10.0.0.9", ResolveIdentity(nil, "10.0.0.9:1"))
}

func TestRequest_IdentityIsCached(t *testing.T) {
	req := &Request{RemoteAddr: "10.0.0.1:1"}
	assert.Equal(t, "10.0.0.1", req.Identity())

	req.RemoteAddr = "10.0.0.2:1"
	assert.Equal(t, "10.0.0.1", req.Identity())

	req.SetIdentity("override")
	assert.Equal(t, "override", req.Identity())
}
