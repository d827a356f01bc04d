// Package codec serializes history payloads to their durable form: a JSON
// envelope holding a JSON body, zstd-compressed above a size threshold and
// protected by a blake3 checksum of the uncompressed bytes.
package codec

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/dshills/histree/internal/history/op"
)

// Version is the current envelope format version.
const Version = 1

// compressThreshold is the body size, in bytes, at which zstd kicks in.
// Chapter snapshots routinely run to tens of kilobytes; tiny config edits
// are stored raw.
const compressThreshold = 512

// Decode errors.
var (
	ErrChecksum = errors.New("payload checksum mismatch")
	ErrVersion  = errors.New("unsupported payload version")
)

const (
	payloadOperation = "operation"
	payloadGroup     = "group"
)

type envelope struct {
	Version    int    `json:"v"`
	Payload    string `json:"payload"`
	Compressed bool   `json:"zstd,omitempty"`
	Sum        string `json:"sum"`
	Body       []byte `json:"body"`
}

// Encoders are stateless for EncodeAll/DecodeAll and safe for concurrent
// use, so one of each serves the package.
var (
	zenc, _ = zstd.NewWriter(nil)
	zdec, _ = zstd.NewReader(nil)
)

// Encode serializes an Operation or Group payload.
func Encode(e op.Entry) ([]byte, error) {
	env := envelope{Version: Version}

	var body []byte
	var err error
	switch v := e.(type) {
	case *op.Operation:
		env.Payload = payloadOperation
		body, err = json.Marshal(v)
	case *op.Group:
		env.Payload = payloadGroup
		body, err = json.Marshal(v)
	default:
		return nil, fmt.Errorf("codec: unsupported payload type %T", e)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: marshal body: %w", err)
	}

	sum := blake3.Sum256(body)
	env.Sum = hex.EncodeToString(sum[:])
	if len(body) >= compressThreshold {
		env.Compressed = true
		env.Body = zenc.EncodeAll(body, nil)
	} else {
		env.Body = body
	}
	return json.Marshal(env)
}

// Decode reverses Encode, verifying the format version and checksum.
func Decode(data []byte) (op.Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("codec: unmarshal envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, env.Version)
	}

	body := env.Body
	if env.Compressed {
		var err error
		body, err = zdec.DecodeAll(env.Body, nil)
		if err != nil {
			return nil, fmt.Errorf("codec: decompress body: %w", err)
		}
	}

	sum := blake3.Sum256(body)
	if hex.EncodeToString(sum[:]) != env.Sum {
		return nil, ErrChecksum
	}

	switch env.Payload {
	case payloadOperation:
		var o op.Operation
		if err := json.Unmarshal(body, &o); err != nil {
			return nil, fmt.Errorf("codec: unmarshal operation: %w", err)
		}
		return &o, nil
	case payloadGroup:
		var g op.Group
		if err := json.Unmarshal(body, &g); err != nil {
			return nil, fmt.Errorf("codec: unmarshal group: %w", err)
		}
		return &g, nil
	default:
		return nil, fmt.Errorf("codec: unknown payload type %q", env.Payload)
	}
}
