package audioio

import "testing"

func TestChunk(t *testing.T) {
	t.Run("frames and duration", func(t *testing.T) {
		c := Chunk{
			Samples: make([]int16, 960),
			Format:  Format{SampleRate: 48000, Channels: 2},
		}
		if c.Frames() != 480 {
			t.Errorf("frames: got %d, want 480", c.Frames())
		}
		if c.Duration() != 0.01 {
			t.Errorf("duration: got %f, want 0.01", c.Duration())
		}
	})

	t.Run("byte conversion round trip", func(t *testing.T) {
		samples := []int16{0, 1, -1, 32767, -32768, 0x1234}
		got := BytesToSamples(SamplesToBytes(samples))
		if len(got) != len(samples) {
			t.Fatalf("length mismatch: %d vs %d", len(got), len(samples))
		}
		for i := range samples {
			if got[i] != samples[i] {
				t.Errorf("sample %d: got %d, want %d", i, got[i], samples[i])
			}
		}
	})

	t.Run("little endian layout", func(t *testing.T) {
		data := SamplesToBytes([]int16{0x1234})
		if data[0] != 0x34 || data[1] != 0x12 {
			t.Errorf("expected little-endian bytes, got %x %x", data[0], data[1])
		}
	})

	t.Run("stereo to mono averages", func(t *testing.T) {
		mono := StereoToMono([]int16{100, 200, -100, -300})
		if len(mono) != 2 || mono[0] != 150 || mono[1] != -200 {
			t.Errorf("downmix mismatch: %v", mono)
		}
	})
}

func TestLevel(t *testing.T) {
	t.Run("silence is zero", func(t *testing.T) {
		if l := Level(make([]int16, 100)); l != 0 {
			t.Errorf("silence level: got %f, want 0", l)
		}
		if l := Level(nil); l != 0 {
			t.Errorf("empty level: got %f, want 0", l)
		}
	})

	t.Run("full scale is one", func(t *testing.T) {
		samples := make([]int16, 100)
		for i := range samples {
			samples[i] = 32767
		}
		if l := Level(samples); l != 1 {
			t.Errorf("full-scale level: got %f, want 1", l)
		}
	})

	t.Run("louder signal reads higher", func(t *testing.T) {
		quiet := make([]int16, 100)
		loud := make([]int16, 100)
		for i := range quiet {
			quiet[i] = 500
			loud[i] = 5000
		}
		lq, ll := Level(quiet), Level(loud)
		if lq <= 0 || ll <= 0 {
			t.Fatalf("levels should be positive: %f, %f", lq, ll)
		}
		if ll <= lq {
			t.Errorf("louder signal should read higher: %f vs %f", ll, lq)
		}
	})
}
