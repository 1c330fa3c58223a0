package rtsp

type Method string

const (
	MethodOptions      Method = "OPTIONS"
	MethodDescribe     Method = "DESCRIBE"
	MethodSetup        Method = "SETUP"
	MethodPlay         Method = "PLAY"
	MethodPause        Method = "PAUSE"
	MethodTeardown     Method = "TEARDOWN"
	MethodGetParameter Method = "GET_PARAMETER"
)

// Methods is the closed set of methods the client knows how to send.
var Methods = []Method{
	MethodOptions,
	MethodDescribe,
	MethodSetup,
	MethodPlay,
	MethodPause,
	MethodTeardown,
	MethodGetParameter,
}

func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is one of Methods.
func (m Method) Valid() bool {
	for _, method := range Methods {
		if m == method {
			return true
		}
	}
	return false
}
