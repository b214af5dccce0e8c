// Package frame decodes the binary audio frames sent by browser clients.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Frame layout: [TimestampMs:4 BE][Flags:4 BE][PCM16LE 16kHz mono:N]
const (
	HeaderSize = 8

	// FlagTTSPlaying is set by clients while local speech synthesis is audible.
	FlagTTSPlaying uint32 = 1 << 0

	SampleRate     = 16000
	BytesPerSample = 2
)

// ErrMalformedFrame is returned for messages that cannot carry a header.
var ErrMalformedFrame = errors.New("malformed frame")

// AudioFrame is one inbound audio message. It is never mutated after Parse.
type AudioFrame struct {
	PCM              []byte
	ClientSentMs     uint32
	ClientSentNs     int64
	ServerReceivedNs int64
	Flags            uint32
}

// TTSPlaying reports whether bit 0 of the flags was set.
func (f AudioFrame) TTSPlaying() bool { return f.Flags&FlagTTSPlaying != 0 }

// Samples returns the number of PCM16 samples in the payload.
func (f AudioFrame) Samples() int { return len(f.PCM) / BytesPerSample }

// Duration is the playback length of the payload.
func (f AudioFrame) Duration() time.Duration {
	return time.Duration(f.Samples()) * time.Second / SampleRate
}

// Parse decodes a raw websocket binary message received at the given instant.
// The PCM payload is copied so the caller may reuse data.
func Parse(data []byte, received time.Time) (AudioFrame, error) {
	if len(data) < HeaderSize {
		return AudioFrame{}, fmt.Errorf("%w: expected at least %d bytes, got %d", ErrMalformedFrame, HeaderSize, len(data))
	}
	ts := binary.BigEndian.Uint32(data[0:4])
	flags := binary.BigEndian.Uint32(data[4:8])

	pcm := make([]byte, len(data)-HeaderSize)
	copy(pcm, data[HeaderSize:])

	return AudioFrame{
		PCM:              pcm,
		ClientSentMs:     ts,
		ClientSentNs:     int64(ts) * int64(time.Millisecond),
		ServerReceivedNs: received.UnixNano(),
		Flags:            flags,
	}, nil
}

// Encode builds a wire frame. Used by clients and tests.
func Encode(timestampMs, flags uint32, pcm []byte) []byte {
	out := make([]byte, HeaderSize+len(pcm))
	binary.BigEndian.PutUint32(out[0:4], timestampMs)
	binary.BigEndian.PutUint32(out[4:8], flags)
	copy(out[HeaderSize:], pcm)
	return out
}
