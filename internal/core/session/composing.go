package session

import (
	"fmt"
	"time"

	"github.com/hay-kot/parley/internal/core/content"
)

// ComposingState is the composing indicator state of one party.
type ComposingState string

const (
	ComposingIdle   ComposingState = "idle"
	ComposingActive ComposingState = "composing"
)

const (
	// defaultRemoteRefresh applies when an active indicator has no refresh.
	defaultRemoteRefresh = 120 * time.Second
	remoteRefreshMargin  = 1.1
)

// SetComposingState updates the local composing state. Going active sends an
// indicator and keeps refreshing it until the composing timeout passes or the
// state goes idle. An empty state means active.
func (s *Session) SetComposingState(state ComposingState) error {
	if state == "" {
		state = ComposingActive
	}
	if state != ComposingActive && state != ComposingIdle {
		return fmt.Errorf("set composing state: unknown state %q", state)
	}
	if s.state != StateEstablished {
		return s.stateError("set composing state")
	}

	if s.localTimeout != nil {
		s.localTimeout.Stop()
		s.localTimeout = nil

		if state == ComposingIdle {
			s.stopLocalComposing()
			return s.sendIndicator(content.StateIdle)
		}
	}

	if state != ComposingActive {
		return nil
	}

	if s.localRefresh == nil {
		if err := s.sendIndicator(content.StateActive); err != nil {
			return err
		}
		s.localRefresh = s.cfg.Clock.Every(s.refreshInterval(), func() {
			if err := s.sendIndicator(content.StateActive); err != nil {
				s.log.Warn().Err(err).Msg("failed to refresh composing indicator")
			}
		})
	}
	s.localTimeout = s.cfg.Clock.AfterFunc(s.cfg.ComposingTimeout, s.localComposingExpired)
	return nil
}

func (s *Session) refreshInterval() time.Duration {
	return s.cfg.IdleTimeout / 2
}

func (s *Session) localComposingExpired() {
	s.localTimeout = nil
	s.stopLocalComposing()
	if s.state != StateEstablished {
		return
	}
	if err := s.sendIndicator(content.StateIdle); err != nil {
		s.log.Warn().Err(err).Msg("failed to send idle indicator")
	}
}

// stopLocalComposing cancels the local refresh and timeout timers without
// sending anything.
func (s *Session) stopLocalComposing() {
	if s.localRefresh != nil {
		s.localRefresh.Stop()
		s.localRefresh = nil
	}
	if s.localTimeout != nil {
		s.localTimeout.Stop()
		s.localTimeout = nil
	}
}

func (s *Session) sendIndicator(state string) error {
	if s.transport == nil {
		return s.stateError("send composing indicator")
	}

	ind := content.IsComposing{State: state, ContentType: content.TypeText}
	if state == content.StateActive {
		ind.Refresh = s.refreshInterval()
	}

	if _, err := s.transport.Send(content.MarshalIsComposing(ind), content.TypeIsComposing); err != nil {
		return fmt.Errorf("send composing indicator: %w", err)
	}
	s.touch()
	return nil
}

// disarmRemoteWatchdog cancels the remote watchdog and reports the remote
// state it implied. Any inbound message ends the remote party's composing.
func (s *Session) disarmRemoteWatchdog() ComposingState {
	if s.remoteWatchdog == nil {
		return ComposingIdle
	}
	s.remoteWatchdog.Stop()
	s.remoteWatchdog = nil
	return ComposingActive
}

func (s *Session) remoteComposing(body Payload, prev ComposingState) {
	ind, err := content.ParseIsComposing(body.Bytes)
	if err != nil {
		s.log.Debug().Err(err).Msg("ignoring malformed composing indicator")
		if prev == ComposingActive {
			s.composingChanged(ComposingIdle)
		}
		return
	}

	state := ComposingIdle
	if ind.Active() {
		state = ComposingActive

		refresh := ind.Refresh
		if refresh <= 0 {
			refresh = defaultRemoteRefresh
		}
		wait := time.Duration(float64(refresh) * remoteRefreshMargin)
		s.remoteWatchdog = s.cfg.Clock.AfterFunc(wait, s.remoteComposingExpired)
	}

	if state != prev {
		s.composingChanged(state)
	}
}

func (s *Session) remoteComposingExpired() {
	s.remoteWatchdog = nil
	if s.state == StateClosed {
		return
	}
	s.composingChanged(ComposingIdle)
}

func (s *Session) composingChanged(state ComposingState) {
	if h := s.Handlers.OnComposingStateChange; h != nil {
		h(ComposingEvent{State: state})
	}
}
