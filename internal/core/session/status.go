package session

// Status is the abstract reason a session closed.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusBlocked  Status = "blocked"
	StatusOffline  Status = "offline"
	StatusNotFound Status = "notfound"
	StatusOther    Status = "other"
)

// Signalling status codes used when terminating.
const (
	codeNormal        = 0
	codeForbidden     = 403
	codeNotFound      = 404
	codeUnavailable   = 480
	codeBusyHere      = 486
	codeNotAcceptable = 488
	codeDecline       = 603
)

// StatusFromCause maps a signalling cause onto a close status.
func StatusFromCause(c Cause) Status {
	switch c {
	case CauseNormal, CauseBusy, CauseCanceled:
		return StatusNormal
	case CauseRejected:
		return StatusBlocked
	case CauseUnavailable:
		return StatusOffline
	case CauseNotFound:
		return StatusNotFound
	default:
		return StatusOther
	}
}

// RejectCode maps a close status onto the signalling rejection code used when
// an inbound session is closed before it was accepted.
func RejectCode(s Status) int {
	switch s {
	case StatusNormal, "":
		return codeBusyHere
	case StatusBlocked:
		return codeForbidden
	case StatusOffline:
		return codeUnavailable
	case StatusNotFound:
		return codeNotFound
	default:
		return codeDecline
	}
}
