// Package artifact persists trained models and keeps a history of previously
// published versions.
package artifact

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	jsonExt = ".json"
	zstdExt = ".zst"
	metaExt = ".meta.json"

	digestPrefix = "blake3:"
)

// zstdMagic is the frame header every zstd stream starts with.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// digestKey separates model digests from any other BLAKE3 use. The bytes are
// the ASCII domain name zero-padded to the 32 bytes keyed mode requires.
var digestKey = [32]byte{
	'd', 'i', 's', 'p', 'a', 't', 'c', 'h', '.', 'm', 'o', 'd', 'e', 'l',
}

// Encoder and decoder are safe for concurrent use and reused across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("artifact: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("artifact: zstd decoder initialization failed: " + err.Error())
	}
}

// Marshal renders m as the indented JSON document stored on disk.
func Marshal(m *model.Model) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

// Compress wraps JSON bytes in a zstd frame.
func Compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/4))
}

// IsCompressed reports whether data is a zstd frame.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Decode parses an artifact, compressed or not, and checks the model's
// invariants. It also returns the uncompressed JSON so callers can digest it.
func Decode(data []byte) (*model.Model, []byte, error) {
	raw := data
	if IsCompressed(data) {
		var err error
		raw, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zstd decompress: %w", common.ErrInvalidModel, err)
		}
	}

	var m model.Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	return &m, raw, nil
}

// Digest returns the keyed BLAKE3 hash of uncompressed artifact JSON, so the
// same model digests identically whether or not it is stored compressed.
func Digest(raw []byte) string {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("artifact: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(raw)
	return digestPrefix + hex.EncodeToString(hasher.Sum(nil))
}
