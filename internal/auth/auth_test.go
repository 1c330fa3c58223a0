package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestComputeResponse(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		realm    string
		nonce    string
		method   string
		uri      string
		expected string
	}{
		{
			// RFC 2069 example, corrected in its errata.
			name:     "rfc2069 example",
			username: "Mufasa",
			password: "CircleOfLife",
			realm:    "testrealm@host.com",
			nonce:    "dcd98b7102dd2f0e8b11d0f600bfb0c093",
			method:   "GET",
			uri:      "/dir/index.html",
			expected: "1949323746fe6a43ef61f9606e7febea",
		},
		{
			name:     "camera describe",
			username: "admin",
			password: "safeai1234",
			realm:    "x",
			nonce:    "y",
			method:   "DESCRIBE",
			uri:      "rtsp://192.168.0.140:554/ch_100",
			expected: md5Hex(md5Hex("admin:x:safeai1234") + ":y:" + md5Hex("DESCRIBE:rtsp://192.168.0.140:554/ch_100")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDigest(Credentials{Username: tt.username, Password: tt.password}, Challenge{Realm: tt.realm, Nonce: tt.nonce})
			assert.Equal(t, tt.expected, d.ComputeResponse(tt.method, tt.uri))
			assert.Equal(t, tt.expected, Response(tt.username, tt.realm, tt.password, tt.method, tt.uri, tt.nonce))
		})
	}
}

func TestAuthorization(t *testing.T) {
	d := &Digest{Realm: "x", Nonce: "y", Username: "admin", Password: "secret"}
	uri := "rtsp://10.0.0.1:554/stream"

	expected := fmt.Sprintf(`Digest username="admin", realm="x", nonce="y", uri="%s", response="%s"`,
		uri, Response("admin", "x", "secret", "DESCRIBE", uri, "y"))
	assert.Equal(t, expected, d.Authorization("DESCRIBE", uri))
	assert.NotContains(t, d.Authorization("DESCRIBE", uri), "secret")
}

func TestCredentialsString(t *testing.T) {
	assert.Equal(t, "admin:******", Credentials{Username: "admin", Password: "pw"}.String())
	assert.Equal(t, "admin", Credentials{Username: "admin"}.String())
	assert.True(t, Credentials{}.Empty())
}
