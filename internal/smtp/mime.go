package smtp

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ParsedHeaders holds the header fields the verification flow cares about.
// The body is never inspected.
type ParsedHeaders struct {
	From      string // bare address from the From header, lowercased
	Subject   string
	MessageID string
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader lets encoded words in any WHATWG-registered charset decode,
// not only the UTF-8/ASCII/ISO-8859-1 set the standard library knows.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// ParseHeaders reads the header block of a raw RFC 5322 message.
func ParseHeaders(raw []byte) (*ParsedHeaders, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedHeaders{
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		MessageID: strings.Trim(msg.Header.Get("Message-Id"), "<> "),
	}

	if from := msg.Header.Get("From"); from != "" {
		parser := mail.AddressParser{WordDecoder: wordDecoder}
		addr, err := parser.Parse(from)
		if err != nil {
			return nil, fmt.Errorf("parse From header: %w", err)
		}
		parsed.From = normalizeAddress(addr.Address)
	}
	return parsed, nil
}

func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
