package login

// State is the position of a Flow in the login handshake.
type State int

const (
	Idle State = iota
	AwaitingOTP
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingOTP:
		return "awaiting-otp"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return "unknown"
}
