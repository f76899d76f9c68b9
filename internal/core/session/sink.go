package session

// sink adapts transport events onto the session without exposing the
// EventSink methods on Session itself.
type sink struct {
	s *Session
}

func (s *Session) sink() EventSink {
	return &sink{s: s}
}

// closed reports whether the session is closed. Transport events that
// arrive after Close are dropped.
func (k *sink) closed() bool {
	return k.s.state == StateClosed
}

func (k *sink) OnAuthenticated() {
	if k.s.transport == nil {
		return
	}
	k.s.dir.authenticated(k.s)
}

func (k *sink) OnAuthFailed() {
	k.s.log.Warn().Msg("transport authentication failed")
	k.dead()
}

func (k *sink) OnError() {
	k.s.log.Warn().Msg("transport session error")
	k.dead()
}

// dead closes the session after the transport failed on its own, so the
// transport is not asked to close again.
func (k *sink) dead() {
	if k.closed() {
		return
	}
	s := k.s
	s.transport = nil
	if o, ok := s.dir.(*outbound); ok {
		o.fail()
	}
	s.Close(StatusNormal)
}

func (k *sink) OnChunkSent(id string, sent int64) {
	if k.closed() {
		return
	}
	k.s.touch()
	if t := k.s.sendTransfers[id]; t != nil {
		t.progress(sent)
	}
}

func (k *sink) OnMessageDelivered(id string) {
	if k.closed() {
		return
	}
	t := k.s.sendTransfers[id]
	if t == nil {
		return
	}
	delete(k.s.sendTransfers, id)
	t.succeed(Payload{})
}

func (k *sink) OnMessageSendFailed(id string, status int, comment string) {
	if k.closed() {
		return
	}
	k.s.log.Debug().Str("message_id", id).Int("status", status).Str("comment", comment).Msg("send failed")

	t := k.s.sendTransfers[id]
	if t == nil {
		return
	}
	delete(k.s.sendTransfers, id)
	t.fail(Payload{})
}

func (k *sink) OnFirstChunkReceived(id, contentType, filename string, size int64, description string) {
	if k.closed() {
		return
	}
	s := k.s
	s.touch()

	t := &Transfer{
		session:     s,
		id:          id,
		direction:   DirectionInbound,
		contentType: contentType,
		size:        size,
		filename:    filename,
		description: description,
	}
	s.recvTransfers[id] = t

	if h := s.Handlers.OnDataStart; h != nil {
		h(DataStartEvent{Transfer: t})
	}
}

func (k *sink) OnChunkReceived(id string, received int64) {
	if k.closed() {
		return
	}
	k.s.touch()
	if t := k.s.recvTransfers[id]; t != nil {
		t.progress(received)
	}
}

func (k *sink) OnMessageReceived(id, contentType string, body Payload) {
	if k.closed() {
		return
	}
	s := k.s
	s.touch()

	if t := s.recvTransfers[id]; t != nil {
		delete(s.recvTransfers, id)
		t.succeed(body)
	}
	s.dispatch(contentType, body)
}

func (k *sink) OnMessageReceiveAborted(id string, partial Payload) {
	k.receiveFailed(id, partial, "receive aborted")
}

func (k *sink) OnMessageReceiveTimeout(id string, partial Payload) {
	k.receiveFailed(id, partial, "receive timed out")
}

func (k *sink) receiveFailed(id string, partial Payload, msg string) {
	if k.closed() {
		return
	}
	k.s.log.Debug().Str("message_id", id).Int("partial_bytes", len(partial.Bytes)).Msg(msg)

	t := k.s.recvTransfers[id]
	if t == nil {
		return
	}
	delete(k.s.recvTransfers, id)
	t.fail(partial)
}
