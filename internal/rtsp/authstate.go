package rtsp

import (
	"github.com/easyDong19/RTSP-socket/internal/auth"
)

type AuthState int

const (
	AuthInactive AuthState = iota
	AuthChallenged
	AuthAttached
)

func (s AuthState) String() string {
	switch s {
	case AuthInactive:
		return "inactive"
	case AuthChallenged:
		return "challenged"
	case AuthAttached:
		return "attached"
	}
	return "unknown"
}

// authState tracks digest authentication for one connection. The rendered
// header is only attached to requests of the method whose challenge produced
// it; the resource URI is fixed per client.
type authState struct {
	state     AuthState
	creds     auth.Credentials
	challenge auth.Challenge
	method    Method
	header    string
}

func newAuthState(creds auth.Credentials) *authState {
	return &authState{creds: creds}
}

// challenged records a server challenge for method.
func (a *authState) challenged(method Method, c auth.Challenge) {
	a.state = AuthChallenged
	a.challenge = c
	a.method = method
	a.header = ""
}

// attach computes the Authorization header for the challenged method.
func (a *authState) attach(uri string) {
	if a.state != AuthChallenged {
		return
	}
	a.header = auth.NewDigest(a.creds, a.challenge).Authorization(a.method.String(), uri)
	a.state = AuthAttached
}

func (a *authState) headerFor(method Method) string {
	if a.state != AuthAttached || method != a.method {
		return ""
	}
	return a.header
}
