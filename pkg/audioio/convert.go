package audioio

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Conversion errors.
var (
	// ErrConverterNotReady indicates Convert was called before Reset
	// initialized the converter for a recording session.
	ErrConverterNotReady = errors.New("audioio: converter not initialized for a session")

	// ErrConversion indicates a chunk could not be converted. The chunk is
	// dropped; later chunks are unaffected.
	ErrConversion = errors.New("audioio: conversion failed")
)

// Converter turns native-format chunks into the fixed wire format using
// linear interpolation. Output is deterministic: the same chunk and target
// always produce the same bytes, and a chunk of N frames at rate ratio R
// produces ceil(N*R) output frames.
//
// A Converter is initialized once per recording session via Reset, not per
// chunk, so the source format cannot drift mid-session.
type Converter struct {
	dst Format

	src   Format
	ready bool

	framesIn  atomic.Int64
	framesOut atomic.Int64
}

// NewConverter creates a Converter targeting the given mono output format.
func NewConverter(dst Format) (*Converter, error) {
	if err := dst.Validate(); err != nil {
		return nil, err
	}
	if dst.Channels != 1 {
		return nil, fmt.Errorf("audioio: converter target must be mono, got %d channels", dst.Channels)
	}
	return &Converter{dst: dst}, nil
}

// Reset prepares the converter for a new recording session capturing in the
// given source format. It must be called before the first Convert of each
// session.
func (c *Converter) Reset(src Format) error {
	if err := src.Validate(); err != nil {
		return err
	}
	c.src = src
	c.ready = true
	c.framesIn.Store(0)
	c.framesOut.Store(0)
	return nil
}

// Target returns the converter's output format.
func (c *Converter) Target() Format {
	return c.dst
}

// Convert resamples and downmixes one chunk into wire-format PCM16 bytes.
// A failed chunk returns an error wrapping ErrConversion and produces no
// output; the converter remains usable for subsequent chunks.
func (c *Converter) Convert(chunk Chunk) ([]byte, error) {
	if !c.ready {
		return nil, ErrConverterNotReady
	}
	if chunk.Format != c.src {
		return nil, fmt.Errorf("%w: chunk format %dHz/%dch does not match session format %dHz/%dch",
			ErrConversion,
			chunk.Format.SampleRate, chunk.Format.Channels,
			c.src.SampleRate, c.src.Channels)
	}

	samples := chunk.Samples
	if c.src.Channels == 2 {
		if len(samples)%2 != 0 {
			return nil, fmt.Errorf("%w: odd sample count %d for stereo chunk", ErrConversion, len(samples))
		}
		samples = StereoToMono(samples)
	}

	c.framesIn.Add(int64(len(samples)))

	out := resample(samples, c.src.SampleRate, c.dst.SampleRate)
	c.framesOut.Add(int64(len(out)))

	return SamplesToBytes(out), nil
}

// Frames returns the total input and output frame counts for the current
// session.
func (c *Converter) Frames() (in, out int64) {
	return c.framesIn.Load(), c.framesOut.Load()
}

// resample converts mono samples from srcRate to dstRate using linear
// interpolation. Fractional output frame counts round up.
func resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	n := len(samples)
	outLen := int(float64(n) * ratio)
	if float64(outLen) < float64(n)*ratio {
		outLen++
	}

	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		if idx >= n-1 {
			out[i] = samples[n-1]
			continue
		}

		frac := srcPos - float64(idx)
		s1 := float64(samples[idx])
		s2 := float64(samples[idx+1])
		out[i] = int16(s1 + frac*(s2-s1))
	}

	return out
}
