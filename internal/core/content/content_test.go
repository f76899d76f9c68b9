package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	assert.Equal(t, TypeText, Default([]byte("hello")))
	assert.Equal(t, TypeOctetStream, Default([]byte{0xff, 0xfe, 0x00}))
}

func TestIsText(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"Text/HTML; charset=utf-8", true},
		{TypeIsComposing, true},
		{TypeXHTML, true},
		{"application/json", true},
		{TypeOctetStream, false},
		{"image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, IsText(tt.contentType))
		})
	}
}

func TestIs_IgnoresParameters(t *testing.T) {
	assert.True(t, Is("application/im-iscomposing+xml; charset=utf-8", TypeIsComposing))
	assert.False(t, Is("text/plain", TypeIsComposing))
}

func TestIsComposing_Active(t *testing.T) {
	body := MarshalIsComposing(IsComposing{State: StateActive, Refresh: 150 * time.Second})

	assert.Contains(t, string(body), "<refresh>150</refresh>")
	assert.Contains(t, string(body), isComposingNS)

	got, err := ParseIsComposing(body)
	require.NoError(t, err)
	assert.True(t, got.Active())
	assert.Equal(t, 150*time.Second, got.Refresh)
}

func TestIsComposing_IdleOmitsRefresh(t *testing.T) {
	body := MarshalIsComposing(IsComposing{State: StateIdle})
	assert.NotContains(t, string(body), "refresh")

	got, err := ParseIsComposing(body)
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.Zero(t, got.Refresh)
}

func TestParseIsComposing_Foreign(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<isComposing xmlns="urn:ietf:params:xml:ns:im-iscomposing"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <state> Active </state>
  <contenttype>text/plain</contenttype>
  <refresh>90</refresh>
</isComposing>`

	got, err := ParseIsComposing([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, StateActive, got.State)
	assert.Equal(t, TypeText, got.ContentType)
	assert.Equal(t, 90*time.Second, got.Refresh)
}

func TestParseIsComposing_Errors(t *testing.T) {
	_, err := ParseIsComposing([]byte("not xml"))
	assert.Error(t, err)

	_, err = ParseIsComposing([]byte(`<isComposing><state>typing</state></isComposing>`))
	assert.ErrorContains(t, err, "unknown state")
}

func TestXHTML(t *testing.T) {
	doc := WrapXHTML(`<p>Hello <b>there</b></p>`)

	body, err := ExtractXHTMLBody(doc)
	require.NoError(t, err)
	assert.Equal(t, `<p>Hello <b>there</b></p>`, body)

	_, err = ExtractXHTMLBody([]byte("<html><body>"))
	assert.Error(t, err)
}
