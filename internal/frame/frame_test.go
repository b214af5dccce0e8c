package frame

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	received := time.Unix(1700000000, 123)

	tests := []struct {
		name        string
		data        []byte
		wantTs      uint32
		wantFlags   uint32
		wantPCM     []byte
		expectError bool
		errorMsg    string
	}{
		{
			name:      "header only",
			data:      []byte{0x00, 0x00, 0x03, 0xE8, 0x00, 0x00, 0x00, 0x00},
			wantTs:    1000,
			wantFlags: 0,
			wantPCM:   []byte{},
		},
		{
			name:      "tts flag with payload",
			data:      []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x01, 0x01, 0x02, 0x03, 0x04},
			wantTs:    0x12345678,
			wantFlags: FlagTTSPlaying,
			wantPCM:   []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name:        "five bytes",
			data:        []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			expectError: true,
			errorMsg:    "expected at least 8 bytes, got 5",
		},
		{
			name:        "empty",
			data:        []byte{},
			expectError: true,
			errorMsg:    "got 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.data, received)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got frame %+v", f)
				}
				if !errors.Is(err, ErrMalformedFrame) {
					t.Errorf("expected ErrMalformedFrame, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error to contain %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.ClientSentMs != tt.wantTs {
				t.Errorf("timestamp = %d, want %d", f.ClientSentMs, tt.wantTs)
			}
			if f.ClientSentNs != int64(tt.wantTs)*int64(time.Millisecond) {
				t.Errorf("client ns = %d", f.ClientSentNs)
			}
			if f.ServerReceivedNs != received.UnixNano() {
				t.Errorf("server ns = %d, want %d", f.ServerReceivedNs, received.UnixNano())
			}
			if f.Flags != tt.wantFlags {
				t.Errorf("flags = %d, want %d", f.Flags, tt.wantFlags)
			}
			if !bytes.Equal(f.PCM, tt.wantPCM) {
				t.Errorf("pcm = %v, want %v", f.PCM, tt.wantPCM)
			}
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	pcm := make([]byte, 640)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	for _, ts := range []uint32{0, 1, 65535, 1<<32 - 1} {
		for _, flags := range []uint32{0, FlagTTSPlaying, 0xFFFFFFFF} {
			raw := Encode(ts, flags, pcm)
			f, err := Parse(raw, time.Now())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if f.ClientSentMs != ts || f.Flags != flags || !bytes.Equal(f.PCM, pcm) {
				t.Errorf("round trip mismatch for ts=%d flags=%d", ts, flags)
			}
			if f.TTSPlaying() != (flags&1 == 1) {
				t.Errorf("TTSPlaying = %v for flags %d", f.TTSPlaying(), flags)
			}
		}
	}
}

func TestParseCopiesPayload(t *testing.T) {
	raw := Encode(5, 0, []byte{1, 2})
	f, err := Parse(raw, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	raw[HeaderSize] = 99
	if f.PCM[0] != 1 {
		t.Error("frame payload aliases the input buffer")
	}
}

func TestDuration(t *testing.T) {
	f := AudioFrame{PCM: make([]byte, 640)}
	if f.Samples() != 320 {
		t.Errorf("samples = %d", f.Samples())
	}
	if f.Duration() != 20*time.Millisecond {
		t.Errorf("duration = %v", f.Duration())
	}
}
