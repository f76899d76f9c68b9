package content

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// WrapXHTML places body inside a minimal XHTML document.
func WrapXHTML(body string) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml"><head></head><body>`)
	b.WriteString(body)
	b.WriteString(`</body></html>`)
	return []byte(b.String())
}

type xhtmlDoc struct {
	XMLName xml.Name `xml:"html"`
	Body    struct {
		Inner string `xml:",innerxml"`
	} `xml:"body"`
}

// ExtractXHTMLBody returns the markup inside the document's body element.
func ExtractXHTMLBody(doc []byte) (string, error) {
	var d xhtmlDoc
	if err := xml.Unmarshal(doc, &d); err != nil {
		return "", fmt.Errorf("parse xhtml: %w", err)
	}
	return strings.TrimSpace(d.Body.Inner), nil
}
