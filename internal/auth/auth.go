package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// HeaderName is the request header the rendered digest is sent in.
const HeaderName = "Authorization"

// Credentials are the camera account used to answer digest challenges. The
// password never leaves this package in clear form.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether no username was configured.
func (c Credentials) Empty() bool {
	return c.Username == ""
}

func (c Credentials) String() string {
	if c.Password == "" {
		return c.Username
	}
	return c.Username + ":******"
}

// Challenge holds the fields a server issues in a 401 response.
type Challenge struct {
	Realm string
	Nonce string
}

// Digest is used for digest authentication. Realm and Nonce are supplied by
// the server in a "401 Unauthorized" response, Username and Password by the
// client.
type Digest struct {
	Realm    string
	Nonce    string
	Username string
	Password string
}

func NewDigest(creds Credentials, challenge Challenge) *Digest {
	return &Digest{
		Realm:    challenge.Realm,
		Nonce:    challenge.Nonce,
		Username: creds.Username,
		Password: creds.Password,
	}
}

// ComputeResponse returns MD5(HA1:nonce:HA2) where HA1 = MD5(user:realm:pass)
// and HA2 = MD5(method:uri), all lower-case hex.
func (d *Digest) ComputeResponse(method, uri string) string {
	ha1 := hash(d.Username, d.Realm, d.Password)
	ha2 := hash(method, uri)
	return hash(ha1, d.Nonce, ha2)
}

// Authorization renders the Authorization header value for a request of the
// given method against uri.
func (d *Digest) Authorization(method, uri string) string {
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		d.Username, d.Realm, d.Nonce, uri, d.ComputeResponse(method, uri))
}

// Response is the digest response value for the given inputs.
func Response(username, realm, password, method, uri, nonce string) string {
	d := &Digest{Realm: realm, Nonce: nonce, Username: username, Password: password}
	return d.ComputeResponse(method, uri)
}

func hash(fields ...string) string {
	sum := md5.Sum([]byte(strings.Join(fields, ":")))
	return hex.EncodeToString(sum[:])
}
