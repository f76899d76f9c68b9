package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/core/content"
)

func TestRouteFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        route
	}{
		{contentType: content.TypeIsComposing, want: routeComposing},
		{contentType: "Application/IM-IsComposing+XML", want: routeComposing},
		{contentType: content.TypeXHTML, want: routeXHTML},
		{contentType: "application/xhtml+xml; charset=utf-8", want: routeXHTML},
		{contentType: content.TypeText, want: routeData},
		{contentType: "", want: routeData},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, routeFor(tt.contentType), tt.contentType)
	}
}

func TestDispatch_XHTMLHandler(t *testing.T) {
	h := newHarness()
	s, tr, _ := h.establishedInbound(t)

	var got []XHTMLEvent
	s.Handlers.OnXHTMLReceived = func(ev XHTMLEvent) { got = append(got, ev) }

	tr.sink.OnMessageReceived("x-1", content.TypeXHTML, TextPayload(string(content.WrapXHTML("<p>hi</p>"))))

	require.Len(t, got, 1)
	assert.Equal(t, "<p>hi</p>", got[0].Body)
	assert.Equal(t, "alice@example.com", got[0].Address)
	assert.Empty(t, h.parent.xhtml)
	assert.Empty(t, h.parent.data)
}

func TestDispatch_XHTMLFallsBackToParent(t *testing.T) {
	h := newHarness()
	h.parent.handlesXHTML = true
	_, tr, _ := h.establishedInbound(t)

	tr.sink.OnMessageReceived("x-1", content.TypeXHTML, TextPayload(string(content.WrapXHTML("hi"))))

	require.Len(t, h.parent.xhtml, 1)
	assert.Equal(t, "hi", h.parent.xhtml[0].Body)
	assert.Empty(t, h.parent.data)
}

func TestDispatch_XHTMLFallsBackToData(t *testing.T) {
	h := newHarness()
	s, tr, _ := h.establishedInbound(t)

	var data []DataEvent
	s.Handlers.OnData = func(ev DataEvent) { data = append(data, ev) }

	tr.sink.OnMessageReceived("x-1", content.TypeXHTML, TextPayload(string(content.WrapXHTML("hi"))))
	tr.sink.OnMessageReceived("x-2", content.TypeXHTML, TextPayload("<html><body>"))

	require.Len(t, data, 2)
	assert.Equal(t, content.TypeXHTML, data[0].ContentType)
	assert.Equal(t, "<html><body>", data[1].Data.String())
}

func TestDispatch_DataFallsBackToParent(t *testing.T) {
	h := newHarness()
	s, tr, _ := h.establishedInbound(t)

	tr.sink.OnMessageReceived("m-1", content.TypeOctetStream, BinaryPayload([]byte{1, 2, 3}))

	require.Len(t, h.parent.data, 1)
	assert.Same(t, s, h.parent.data[0].Session)
	assert.Equal(t, []byte{1, 2, 3}, h.parent.data[0].Data.Bytes)
	assert.False(t, h.parent.data[0].Data.Text)
}
