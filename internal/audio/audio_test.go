package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPCMRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1}
	pcm := EncodePCM16LE(in)
	if len(pcm) != len(in)*2 {
		t.Fatalf("len = %d", len(pcm))
	}
	out, err := DecodePCM16LE(pcm)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-3 {
			t.Errorf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestDecodePCM16LEOdd(t *testing.T) {
	if _, err := DecodePCM16LE([]byte{1, 2, 3}); !errors.Is(err, ErrOddPCM) {
		t.Errorf("err = %v", err)
	}
}

func TestEncodeClips(t *testing.T) {
	out, _ := DecodePCM16LE(EncodePCM16LE([]float32{4, -4}))
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Errorf("clipping failed: %v", out)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("RMS(nil) != 0")
	}
	if got := RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %f", got)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 10))
	}
	path := filepath.Join(t.TempDir(), "utt.wav")
	if err := WriteWAVFile(path, samples, 16000); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, sr, err := DecodeWAVToFloat32(raw)
	if err != nil {
		t.Fatal(err)
	}
	if sr != 16000 {
		t.Errorf("sample rate = %d", sr)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	if math.Abs(float64(got[100]-samples[100])) > 1e-3 {
		t.Errorf("sample mismatch %f vs %f", got[100], samples[100])
	}
}

func TestResampleLinear(t *testing.T) {
	in := make([]float32, 48000)
	out := ResampleLinear(in, 48000, 16000)
	if len(out) != 16000 {
		t.Errorf("len = %d", len(out))
	}
	src := []float32{1, 2}
	same := ResampleLinear(src, 16000, 16000)
	same[0] = 9
	if src[0] != 1 {
		t.Error("same-rate resample aliases its input")
	}
}

func TestBufferKeepsNewest(t *testing.T) {
	b := NewBuffer(3)
	b.Append([]float32{1, 2})
	b.Append([]float32{3, 4, 5})
	got := b.Snapshot()
	if len(got) != 3 || got[0] != 3 || got[2] != 5 {
		t.Errorf("snapshot = %v", got)
	}
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after reset = %d", b.Len())
	}
}
