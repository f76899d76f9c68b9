package content

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Composing states as carried on the wire (RFC 3994).
const (
	StateActive = "active"
	StateIdle   = "idle"
)

const isComposingNS = "urn:ietf:params:xml:ns:im-iscomposing"

// IsComposing is a decoded composing indicator.
type IsComposing struct {
	State       string
	ContentType string
	// Refresh is the interval at which the sender promises to repeat an
	// active indicator. Zero when absent.
	Refresh time.Duration
}

// Active reports whether the indicator announces an active state.
func (c IsComposing) Active() bool {
	return c.State == StateActive
}

type isComposingDoc struct {
	XMLName     xml.Name `xml:"isComposing"`
	Xmlns       string   `xml:"xmlns,attr,omitempty"`
	State       string   `xml:"state"`
	ContentType string   `xml:"contenttype,omitempty"`
	Refresh     int      `xml:"refresh,omitempty"`
}

// MarshalIsComposing renders an indicator document. Refresh is rounded down
// to whole seconds and omitted when zero.
func MarshalIsComposing(c IsComposing) []byte {
	doc := isComposingDoc{
		Xmlns:       isComposingNS,
		State:       c.State,
		ContentType: c.ContentType,
		Refresh:     int(c.Refresh / time.Second),
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		// Only string and int fields; encoding cannot fail.
		panic(fmt.Sprintf("marshal isComposing: %v", err))
	}
	return append([]byte(xml.Header), out...)
}

// ParseIsComposing decodes an indicator document.
func ParseIsComposing(body []byte) (IsComposing, error) {
	var doc isComposingDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return IsComposing{}, fmt.Errorf("parse isComposing: %w", err)
	}

	state := strings.ToLower(strings.TrimSpace(doc.State))
	switch state {
	case StateActive, StateIdle:
	default:
		return IsComposing{}, fmt.Errorf("parse isComposing: unknown state %q", doc.State)
	}

	return IsComposing{
		State:       state,
		ContentType: strings.TrimSpace(doc.ContentType),
		Refresh:     time.Duration(doc.Refresh) * time.Second,
	}, nil
}
