package session

// Payload is message data as handed over by the transport. Text marks bodies
// the transport decoded as text; binary bodies are raw bytes.
type Payload struct {
	Bytes []byte
	Text  bool
}

// TextPayload wraps a string body.
func TextPayload(s string) Payload {
	return Payload{Bytes: []byte(s), Text: true}
}

// BinaryPayload wraps a binary body.
func BinaryPayload(b []byte) Payload {
	return Payload{Bytes: b}
}

// Empty reports whether the payload carries no data.
func (p Payload) Empty() bool {
	return p.Bytes == nil
}

// String returns the body as a string regardless of its kind.
func (p Payload) String() string {
	return string(p.Bytes)
}

// DataStartEvent fires when the first chunk of an inbound message arrives.
type DataStartEvent struct {
	Transfer *Transfer
}

// ProgressEvent reports bytes moved so far for one transfer.
type ProgressEvent struct {
	BytesComplete int64
	// PercentComplete is nil when the total size is unknown.
	PercentComplete *int
}

// SuccessEvent fires when a transfer completes. Data is empty for outbound
// transfers.
type SuccessEvent struct {
	Data Payload
}

// FailureEvent fires when a transfer fails or is aborted. PartialData holds
// whatever the transport captured before the failure.
type FailureEvent struct {
	PartialData Payload
}

// DataEvent carries one complete inbound message.
type DataEvent struct {
	Session     *Session
	Address     string
	ContentType string
	Data        Payload
}

// XHTMLEvent carries the body of an inbound rich-content message.
type XHTMLEvent struct {
	Session *Session
	Address string
	Body    string
}

// ComposingEvent reports a change in the remote party's composing state.
type ComposingEvent struct {
	State ComposingState
}

// CloseEvent fires exactly once when a session closes.
type CloseEvent struct {
	Status Status
}

// Handlers are the session-level notifications an application may set. Nil
// handlers are skipped, except OnData and OnXHTMLReceived which fall back to
// the session's parent.
type Handlers struct {
	OnDataStart            func(DataStartEvent)
	OnData                 func(DataEvent)
	OnXHTMLReceived        func(XHTMLEvent)
	OnComposingStateChange func(ComposingEvent)
	OnClose                func(CloseEvent)
}

// Parent is the owning registry that receives notifications a session does
// not handle itself.
type Parent interface {
	HandleData(ev DataEvent)
	// HandleXHTML reports false when the parent has no rich-content handler,
	// in which case the message is delivered as generic data.
	HandleXHTML(ev XHTMLEvent) bool
}
