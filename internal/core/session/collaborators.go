package session

// Signalling collaborator.

// Originator identifies which side ended a signalling session.
type Originator string

const (
	OriginatorLocal  Originator = "local"
	OriginatorRemote Originator = "remote"
)

// Cause is the signalling layer's reason for ending or failing a session.
type Cause string

const (
	CauseNormal         Cause = "normal"
	CauseBusy           Cause = "busy"
	CauseCanceled       Cause = "canceled"
	CauseRejected       Cause = "rejected"
	CauseUnavailable    Cause = "unavailable"
	CauseNotFound       Cause = "not_found"
	CauseAuthentication Cause = "authentication_error"
	CauseOther          Cause = "other"
)

// EndEvent describes a signalling session that ended or failed.
type EndEvent struct {
	Originator Originator
	Cause      Cause
}

// Response is the remote party's answer to an outbound offer.
type Response struct {
	// Body carries the remote transport answer.
	Body string
	// Contact holds the parsed contact header parameters.
	Contact map[string]string
}

// SignalHandlers receive signalling session outcomes.
type SignalHandlers struct {
	Started func(Response)
	Ended   func(EndEvent)
	Failed  func(EndEvent)
}

// ConnectOptions configure an outbound signalling session.
type ConnectOptions struct {
	Offer       string
	Headers     map[string]string
	FeatureTags []string
	Handlers    SignalHandlers
}

// Signaller opens outbound signalling sessions.
type Signaller interface {
	Connect(target string, opts ConnectOptions) (Signalling, error)
}

// Signalling is one signalling sub-session.
type Signalling interface {
	// Bind installs outcome handlers on an inbound signalling session.
	Bind(h SignalHandlers)
	// Answer accepts an inbound session with the local transport answer.
	Answer(sdp string) error
	// Terminate ends the session. A zero status code requests a normal
	// termination; otherwise the code is the rejection status.
	Terminate(statusCode int) error
}

// InboundRequest is an inbound session request delivered by the registry.
type InboundRequest struct {
	Signalling  Signalling
	RemoteURI   string
	DisplayName string
	Headers     map[string]string
	Contact     map[string]string
	// Offer carries the remote transport offer.
	Offer string
}

// Transport collaborator.

// FileParams describe a file sent over a dedicated transport session.
type FileParams struct {
	Name        string
	ContentType string
	Size        int64
	Description string
}

// EventSink receives transport sub-session events. Sizes and byte counts are
// in bytes; a size of zero means unknown.
type EventSink interface {
	OnAuthenticated()
	OnAuthFailed()
	OnError()

	OnChunkSent(id string, sentBytes int64)
	OnMessageDelivered(id string)
	OnMessageSendFailed(id string, status int, comment string)

	OnFirstChunkReceived(id, contentType, filename string, size int64, description string)
	OnChunkReceived(id string, receivedBytes int64)
	OnMessageReceived(id, contentType string, body Payload)
	OnMessageReceiveAborted(id string, partial Payload)
	OnMessageReceiveTimeout(id string, partial Payload)
}

// Endpoint is one pooled transport access point.
type Endpoint interface {
	Name() string
	CreateSession(sink EventSink) (Transport, error)
	CreateFileTransferSession(sink EventSink, data []byte, params FileParams) (Transport, error)
}

// Transport is one transport sub-session.
type Transport interface {
	Send(data []byte, contentType string) (string, error)
	// Offer builds the local offer. Only valid after authentication.
	Offer() (string, error)
	// ProcessAnswer applies the remote answer to a local offer. It returns
	// the message id of a queued file transfer, or "" when none is queued.
	ProcessAnswer(sdp string) (string, error)
	// Answer builds the local answer to a remote offer.
	Answer(offer string) (string, error)
	AbortSend(id string) error
	AbortReceive(id string) error
	Close() error
}
