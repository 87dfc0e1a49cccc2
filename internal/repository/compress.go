package repository

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Payload header bytes
const (
	payloadRaw  byte = 0
	payloadZstd byte = 1
)

// payloadCodec frames stored payloads. Every payload carries a header byte so
// rows written with a different compression setting stay readable.
type payloadCodec struct {
	enc *zstd.Encoder // nil when compression is off
	dec *zstd.Decoder
}

func newPayloadCodec(compress bool, level int) (*payloadCodec, error) {
	c := &payloadCodec{}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		c.enc = enc
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	c.dec = dec
	return c, nil
}

func (c *payloadCodec) encode(data []byte) []byte {
	if c.enc == nil {
		return append([]byte{payloadRaw}, data...)
	}
	out := make([]byte, 1, len(data)/2+1)
	out[0] = payloadZstd
	return c.enc.EncodeAll(data, out)
}

func (c *payloadCodec) decode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	switch payload[0] {
	case payloadRaw:
		return payload[1:], nil
	case payloadZstd:
		return c.dec.DecodeAll(payload[1:], nil)
	default:
		return nil, fmt.Errorf("unknown payload header %d", payload[0])
	}
}

func (c *payloadCodec) close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	c.dec.Close()
}
