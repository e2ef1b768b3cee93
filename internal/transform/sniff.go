package transform

import (
	"encoding/base64"
	"fmt"
)

// base64Magic maps the first byte of a base64 image payload to the MIME
// subtype it encodes. The first byte covers the first six bits of the raw
// data, which is accurate enough here and avoids decoding the blob first.
var base64Magic = map[byte]string{
	'/': "jpg",
	'R': "gif",
	'i': "png",
	'P': "svg+xml",
}

// MIMESubtype sniffs the image type of a base64 payload from its first
// byte, defaulting to png when the byte is unrecognized.
func MIMESubtype(source []byte) string {
	if len(source) > 0 {
		if subtype, ok := base64Magic[source[0]]; ok {
			return subtype
		}
	}
	return "png"
}

// DataURI renders the payload as an RFC 2397 data URL.
func DataURI(source []byte) string {
	return fmt.Sprintf("data:image/%s;base64,%s", MIMESubtype(source), source)
}

func decodeBase64(source []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(source)))
	n, err := base64.StdEncoding.Decode(raw, source)
	if err != nil {
		return nil, err
	}
	return raw[:n], nil
}

func encodeBase64(data []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out
}
