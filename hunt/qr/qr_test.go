package qr

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey = []byte("0123456789abcdef")
	testIV  = []byte("fedcba9876543210")
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey, testIV)
	require.NoError(t, err)
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	for _, sc := range []ScanCode{{Node: "A", Number: 1}, {Node: "E", Number: 4}, {Node: "lib-3", Number: 2}} {
		payload, err := c.Encode(sc)
		require.NoError(t, err)
		assert.NotContains(t, payload, "+")
		assert.NotContains(t, payload, "/")

		got, err := c.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, sc, got)
	}
}

func TestDecodeAcceptsPaddedPayload(t *testing.T) {
	c := newTestCodec(t)
	payload, err := c.Encode(ScanCode{Node: "B", Number: 3})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	require.NoError(t, err)
	got, err := c.Decode(base64.URLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, ScanCode{Node: "B", Number: 3}, got)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := newTestCodec(t)
	payload, err := c.Encode(ScanCode{Node: "C", Number: 2})
	require.NoError(t, err)

	other, err := NewCodec([]byte("another-16b-key!"), testIV)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":     "",
		"not b64":   "!!!",
		"too short": base64.RawURLEncoding.EncodeToString(make([]byte, 16)),
		"truncated": payload[:len(payload)-4],
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(p)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}

	_, err = other.Decode(payload)
	assert.Error(t, err, "wrong key must not yield a scan code")
}

func TestNewCodecValidatesInputs(t *testing.T) {
	_, err := NewCodec([]byte("short"), testIV)
	assert.Error(t, err)
	_, err = NewCodec(testKey, []byte("short"))
	assert.Error(t, err)
}

func TestScanURL(t *testing.T) {
	c := newTestCodec(t)
	u, err := c.ScanURL("https://hunt.example.edu/", ScanCode{Node: "D", Number: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://hunt.example.edu/check-route?data="))

	_, err = c.ScanURL("https://hunt.example.edu", ScanCode{Node: "", Number: 1})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestRenderPNG(t *testing.T) {
	png, err := Render("https://hunt.example.edu/check-route?data=abc", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestLinkForWithoutCodec(t *testing.T) {
	u, err := LinkFor(nil, "http://localhost:3000/", ScanCode{Node: "B", Number: 2})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/check-route?num=2&qr=B", u)

	u, err = LinkFor(newTestCodec(t), "http://localhost:3000", ScanCode{Node: "B", Number: 2})
	require.NoError(t, err)
	assert.Contains(t, u, "?data=")
}
