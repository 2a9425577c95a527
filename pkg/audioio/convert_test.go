package audioio

import (
	"bytes"
	"errors"
	"testing"
)

func TestConverter(t *testing.T) {
	t.Run("requires mono target", func(t *testing.T) {
		_, err := NewConverter(Format{SampleRate: 24000, Channels: 2})
		if err == nil {
			t.Error("expected error for stereo target")
		}
	})

	t.Run("requires reset before convert", func(t *testing.T) {
		c, err := NewConverter(WireFormat)
		if err != nil {
			t.Fatalf("new converter: %v", err)
		}

		_, err = c.Convert(Chunk{Samples: []int16{1, 2}, Format: Format{SampleRate: 48000, Channels: 1}})
		if !errors.Is(err, ErrConverterNotReady) {
			t.Errorf("expected ErrConverterNotReady, got %v", err)
		}
	})

	t.Run("passthrough at wire format", func(t *testing.T) {
		c := newTestConverter(t, Format{SampleRate: 24000, Channels: 1})

		samples := []int16{100, -200, 300}
		out, err := c.Convert(Chunk{Samples: samples, Format: Format{SampleRate: 24000, Channels: 1}})
		if err != nil {
			t.Fatalf("convert failed: %v", err)
		}
		if !bytes.Equal(out, SamplesToBytes(samples)) {
			t.Error("passthrough should not alter samples")
		}
	})

	t.Run("output frames round up", func(t *testing.T) {
		cases := []struct {
			srcRate string
			format  Format
			frames  int
			want    int
		}{
			{"48k halved", Format{SampleRate: 48000, Channels: 1}, 4, 2},
			{"48k odd input", Format{SampleRate: 48000, Channels: 1}, 3, 2},
			{"44.1k fractional", Format{SampleRate: 44100, Channels: 1}, 100, 55},
			{"44.1k exact", Format{SampleRate: 44100, Channels: 1}, 441, 240},
			{"16k upsample", Format{SampleRate: 16000, Channels: 1}, 10, 15},
		}

		for _, tc := range cases {
			c := newTestConverter(t, tc.format)
			out, err := c.Convert(Chunk{Samples: make([]int16, tc.frames), Format: tc.format})
			if err != nil {
				t.Fatalf("%s: convert failed: %v", tc.srcRate, err)
			}
			if got := len(out) / 2; got != tc.want {
				t.Errorf("%s: got %d output frames, want %d", tc.srcRate, got, tc.want)
			}
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		format := Format{SampleRate: 44100, Channels: 1}
		chunk := Chunk{Samples: []int16{0, 1000, -1000, 5000, 32000, -32000, 7}, Format: format}

		c1 := newTestConverter(t, format)
		c2 := newTestConverter(t, format)

		out1, err1 := c1.Convert(chunk)
		out2, err2 := c2.Convert(chunk)
		if err1 != nil || err2 != nil {
			t.Fatalf("convert failed: %v, %v", err1, err2)
		}
		if !bytes.Equal(out1, out2) {
			t.Error("identical input must produce identical output")
		}
	})

	t.Run("stereo downmix averages channels", func(t *testing.T) {
		format := Format{SampleRate: 24000, Channels: 2}
		c := newTestConverter(t, format)

		out, err := c.Convert(Chunk{Samples: []int16{100, 200, -100, -300}, Format: format})
		if err != nil {
			t.Fatalf("convert failed: %v", err)
		}

		mono := BytesToSamples(out)
		if len(mono) != 2 {
			t.Fatalf("expected 2 mono frames, got %d", len(mono))
		}
		if mono[0] != 150 || mono[1] != -200 {
			t.Errorf("downmix mismatch: got %v", mono)
		}
	})

	t.Run("format mismatch drops chunk only", func(t *testing.T) {
		format := Format{SampleRate: 48000, Channels: 1}
		c := newTestConverter(t, format)

		_, err := c.Convert(Chunk{Samples: []int16{1}, Format: Format{SampleRate: 44100, Channels: 1}})
		if !errors.Is(err, ErrConversion) {
			t.Errorf("expected ErrConversion, got %v", err)
		}

		// The converter stays usable for the rest of the session.
		if _, err := c.Convert(Chunk{Samples: []int16{1, 2}, Format: format}); err != nil {
			t.Errorf("converter unusable after dropped chunk: %v", err)
		}
	})

	t.Run("odd stereo sample count rejected", func(t *testing.T) {
		format := Format{SampleRate: 48000, Channels: 2}
		c := newTestConverter(t, format)

		_, err := c.Convert(Chunk{Samples: []int16{1, 2, 3}, Format: format})
		if !errors.Is(err, ErrConversion) {
			t.Errorf("expected ErrConversion, got %v", err)
		}
	})

	t.Run("reset restarts frame counters", func(t *testing.T) {
		format := Format{SampleRate: 48000, Channels: 1}
		c := newTestConverter(t, format)

		if _, err := c.Convert(Chunk{Samples: make([]int16, 480), Format: format}); err != nil {
			t.Fatalf("convert failed: %v", err)
		}
		in, out := c.Frames()
		if in != 480 || out != 240 {
			t.Errorf("frame counters: got %d/%d, want 480/240", in, out)
		}

		if err := c.Reset(format); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		in, out = c.Frames()
		if in != 0 || out != 0 {
			t.Errorf("counters survived reset: %d/%d", in, out)
		}
	})
}

func newTestConverter(t *testing.T, src Format) *Converter {
	t.Helper()
	c, err := NewConverter(WireFormat)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	if err := c.Reset(src); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return c
}
