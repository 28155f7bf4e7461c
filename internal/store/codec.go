// Package store implements the state store: encoding the state document
// into a compact checksummed blob that fits inside a Discord message,
// schema migration, and the single-writer mutation loop around the
// persisted document.
package store

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"

	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
)

// Blob format: "LMS2:<checksum>:<payload>" where payload is
// base64(zlib(compact JSON)) and checksum is the hex of the first eight
// bytes of the payload's BLAKE2b-256 digest. Blobs starting with "{" are
// legacy uncompressed JSON and still decode.
const (
	blobPrefix = "LMS2"
	blobSep    = ":"

	// MaxBlobRunes is the ceiling on the encoded blob, dictated by the
	// Discord embed description limit.
	MaxBlobRunes = 4000

	checksumBytes = 8
)

// Codec encodes and decodes state documents to and from message blobs.
type Codec struct{}

// NewCodec returns a Codec.
func NewCodec() *Codec { return &Codec{} }

// Encode serializes, compresses and checksums a document. Fails with a
// size error when the blob would not fit in a message.
func (c *Codec) Encode(doc *state.Document) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state marshal failed", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state compression failed", err)
	}
	if err := zw.Close(); err != nil {
		return "", shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state compression failed", err)
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	blob := blobPrefix + blobSep + checksum(payload) + blobSep + payload

	if utf8.RuneCountInString(blob) > MaxBlobRunes {
		return "", shared.ErrStateTooLarge
	}
	return blob, nil
}

// EncodedSize returns the rune length the document would occupy encoded,
// without the size ceiling check. Used by the store to decide pruning.
func (c *Codec) EncodedSize(doc *state.Document) (int, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state marshal failed", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return 0, shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state compression failed", err)
	}
	if err := zw.Close(); err != nil {
		return 0, shared.WrapError("store", "Encode", shared.ErrInvalidFormat, "state compression failed", err)
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	return len(blobPrefix) + 2*len(blobSep) + 2*checksumBytes + len(payload), nil
}

// Decode parses a blob back into the raw document map. Migration runs on
// the raw map before it is converted to the typed document, so Decode
// returns map form.
func (c *Codec) Decode(blob string) (map[string]any, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, shared.ErrStateCorrupted
	}

	// Legacy plain JSON.
	if strings.HasPrefix(blob, "{") {
		return decodeJSON([]byte(blob))
	}

	parts := strings.SplitN(blob, blobSep, 3)
	if len(parts) != 3 || parts[0] != blobPrefix {
		return nil, shared.ErrStateCorrupted
	}
	sum, payload := parts[1], parts[2]

	if checksum(payload) != sum {
		return nil, shared.ErrStateChecksum
	}

	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, shared.WrapError("store", "Decode", shared.ErrCorruption, "base64 decode failed", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, shared.WrapError("store", "Decode", shared.ErrCorruption, "zlib stream invalid", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, shared.WrapError("store", "Decode", shared.ErrCorruption, "zlib decompression failed", err)
	}

	return decodeJSON(raw)
}

func decodeJSON(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, shared.WrapError("store", "Decode", shared.ErrCorruption, "state JSON invalid", err)
	}
	return doc, nil
}

func checksum(payload string) string {
	digest := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(digest[:checksumBytes])
}
