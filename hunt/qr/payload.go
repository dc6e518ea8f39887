// Package qr encodes the scan payloads printed on route nodes and renders
// them as QR images.
package qr

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidPayload is returned for payloads that fail to decode or decrypt.
var ErrInvalidPayload = errors.New("invalid scan payload")

// ScanCode is what a printed code identifies: a node on one route color.
type ScanCode struct {
	Node   string `json:"node"`
	Number int    `json:"number"`
}

// Codec encrypts and decrypts scan payloads with a fixed key and IV.
// A payload is base64url(iv ‖ AES-CBC-PKCS7("number=<n>ANDnode=<X>")).
type Codec struct {
	block cipher.Block
	iv    []byte
}

// NewCodec accepts a 16, 24 or 32 byte key and a 16 byte IV.
func NewCodec(key, iv []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("qr key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("qr iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Codec{block: block, iv: append([]byte(nil), iv...)}, nil
}

// Encode produces the URL-safe payload for sc.
func (c *Codec) Encode(sc ScanCode) (string, error) {
	if sc.Node == "" || sc.Number <= 0 {
		return "", fmt.Errorf("%w: node and number are required", ErrInvalidPayload)
	}
	plain := pkcs7Pad([]byte(fmt.Sprintf("number=%dANDnode=%s", sc.Number, sc.Node)), aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(plain))
	copy(out, c.iv)
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out[aes.BlockSize:], plain)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode reverses Encode. The leading block is skipped; decryption always
// uses the configured IV.
func (c *Codec) Decode(payload string) (ScanCode, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
	if err != nil {
		return ScanCode{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return ScanCode{}, fmt.Errorf("%w: bad length %d", ErrInvalidPayload, len(raw))
	}

	body := make([]byte, len(raw)-aes.BlockSize)
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(body, raw[aes.BlockSize:])
	body, err = pkcs7Unpad(body, aes.BlockSize)
	if err != nil {
		return ScanCode{}, err
	}

	values, err := url.ParseQuery(strings.Replace(string(body), "AND", "&", 1))
	if err != nil {
		return ScanCode{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	number, err := strconv.Atoi(values.Get("number"))
	if err != nil || number <= 0 {
		return ScanCode{}, fmt.Errorf("%w: bad number %q", ErrInvalidPayload, values.Get("number"))
	}
	node := values.Get("node")
	if node == "" {
		return ScanCode{}, fmt.Errorf("%w: missing node", ErrInvalidPayload)
	}
	return ScanCode{Node: node, Number: number}, nil
}

// ScanURL is the link a printed code points at.
func (c *Codec) ScanURL(baseURL string, sc ScanCode) (string, error) {
	payload, err := c.Encode(sc)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(baseURL, "/") + "/check-route?data=" + payload, nil
}

// LinkFor is the scan URL for sc. Without a codec the node and route number
// travel in plain query parameters.
func LinkFor(c *Codec, baseURL string, sc ScanCode) (string, error) {
	if c != nil {
		return c.ScanURL(baseURL, sc)
	}
	if sc.Node == "" || sc.Number <= 0 {
		return "", fmt.Errorf("%w: node and number are required", ErrInvalidPayload)
	}
	q := url.Values{"num": {strconv.Itoa(sc.Number)}, "qr": {sc.Node}}
	return strings.TrimRight(baseURL, "/") + "/check-route?" + q.Encode(), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidPayload)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidPayload)
		}
	}
	return b[:len(b)-n], nil
}
