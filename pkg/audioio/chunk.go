package audioio

import "math"

// Chunk is one delivery of captured audio in the device's native format.
// It is created by a Source, consumed synchronously by the Converter, and
// then discarded.
type Chunk struct {
	// Samples contains interleaved PCM16 samples (little-endian on the wire).
	Samples []int16

	// Format is the sample rate and channel count of this chunk.
	Format Format
}

// Frames returns the number of sample frames in this chunk.
func (c *Chunk) Frames() int {
	if c.Format.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// Duration returns the duration of this chunk in seconds.
func (c *Chunk) Duration() float64 {
	if c.Format.SampleRate == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.Format.SampleRate)
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// StereoToMono averages stereo samples to mono.
func StereoToMono(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		left := int32(samples[i*2])
		right := int32(samples[i*2+1])
		mono[i] = int16((left + right) / 2)
	}
	return mono
}

// RMS calculates the root mean square amplitude of samples,
// normalized to 0.0-1.0 of full scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum/float64(len(samples))) / 32767
}

// Level converts a chunk to a normalized instantaneous signal level for
// visualization: log-scaled RMS mapped onto 0.0-1.0, where 0.0 is -60 dBFS
// or quieter and 1.0 is full scale.
func Level(samples []int16) float64 {
	rms := RMS(samples)
	if rms <= 0 {
		return 0
	}

	db := 20 * math.Log10(rms)
	level := 1 + db/60
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}
