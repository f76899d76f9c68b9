package session

import "fmt"

// Transfer tracks one in-flight message in either direction. It is created
// when a send starts or the first chunk of an inbound message arrives and is
// discarded after exactly one terminal callback.
type Transfer struct {
	OnSuccess  func(SuccessEvent)
	OnFailure  func(FailureEvent)
	OnProgress func(ProgressEvent)

	session     *Session
	id          string
	direction   Direction
	contentType string
	size        int64
	filename    string
	description string
	done        bool
}

// ID returns the transport's message id.
func (t *Transfer) ID() string { return t.id }

// Direction reports whether the transfer is being sent or received.
func (t *Transfer) Direction() Direction { return t.direction }

// ContentType returns the declared content type.
func (t *Transfer) ContentType() string { return t.contentType }

// Size returns the total size in bytes and whether it is known.
func (t *Transfer) Size() (int64, bool) { return t.size, t.size > 0 }

// Filename returns the file name for file transfers.
func (t *Transfer) Filename() string { return t.filename }

// Description returns the file description for file transfers.
func (t *Transfer) Description() string { return t.description }

// Session returns the session the transfer belongs to.
func (t *Transfer) Session() *Session { return t.session }

// Done reports whether the transfer has completed or failed.
func (t *Transfer) Done() bool { return t.done }

// Abort asks the transport to abandon the transfer. The failure callback
// fires when the transport reports the abort.
func (t *Transfer) Abort() error {
	tr := t.session.transport
	if t.done || tr == nil {
		return fmt.Errorf("abort transfer %s: %w", t.id, ErrInvalidState)
	}
	if t.direction == DirectionOutbound {
		return tr.AbortSend(t.id)
	}
	return tr.AbortReceive(t.id)
}

func (t *Transfer) progress(n int64) {
	if t.done || t.OnProgress == nil {
		return
	}
	t.OnProgress(ProgressEvent{BytesComplete: n, PercentComplete: percent(n, t.size)})
}

func (t *Transfer) succeed(data Payload) {
	if t.done {
		return
	}
	t.done = true
	if t.OnSuccess != nil {
		t.OnSuccess(SuccessEvent{Data: data})
	}
	if h := t.session.cfg.Hooks.TransferDone; h != nil {
		h(t.session, t)
	}
}

func (t *Transfer) fail(partial Payload) {
	if t.done {
		return
	}
	t.done = true
	if t.OnFailure != nil {
		t.OnFailure(FailureEvent{PartialData: partial})
	}
	if h := t.session.cfg.Hooks.TransferFailed; h != nil {
		h(t.session, t)
	}
}

// percent returns floor(done*100/size), or nil when size is unknown.
func percent(done, size int64) *int {
	if size <= 0 {
		return nil
	}
	p := int(done * 100 / size)
	return &p
}

func (s *Session) trackSend(id, contentType string, size int64, sc SendConfig) {
	t := &Transfer{
		OnSuccess:   sc.OnSuccess,
		OnFailure:   sc.OnFailure,
		OnProgress:  sc.OnProgress,
		session:     s,
		id:          id,
		direction:   DirectionOutbound,
		contentType: contentType,
		size:        size,
	}
	if ft := sc.FileTransfer; ft != nil {
		t.filename = ft.Name
		t.description = ft.Description
	}
	s.sendTransfers[id] = t
}

// Transfers returns the transfers currently in flight.
func (s *Session) Transfers() []*Transfer {
	out := make([]*Transfer, 0, len(s.sendTransfers)+len(s.recvTransfers))
	for _, t := range s.sendTransfers {
		out = append(out, t)
	}
	for _, t := range s.recvTransfers {
		out = append(out, t)
	}
	return out
}
