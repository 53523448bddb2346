package codec

import "math"

// resampleFactor is the ratio between the engine's internal 48kHz PCM and
// the 8kHz G.711 wire rate.
const resampleFactor = 6

// firTaps is a windowed-sinc low-pass filter shared read-only by every
// Upsampler and Downsampler. Its cutoff sits at the 8kHz side's Nyquist
// limit, so it serves both as the anti-imaging filter after zero-stuffing
// on the way up and the anti-aliasing filter before decimation on the way
// down.
var firTaps = designLowpassFIR(47, 1.0/(2*resampleFactor))

func designLowpassFIR(numTaps int, cutoff float64) []float64 {
	taps := make([]float64, numTaps)
	mid := float64(numTaps-1) / 2
	sum := 0.0
	for i := range taps {
		x := float64(i) - mid
		var sinc float64
		if x == 0 {
			sinc = 2 * cutoff
		} else {
			sinc = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(numTaps-1))
		taps[i] = sinc * window
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// delayLine is the shared circular-buffer convolution state used by both
// directions of resampling.
type delayLine struct {
	ring []float64
	head int
}

func newDelayLine() delayLine {
	return delayLine{ring: make([]float64, len(firTaps))}
}

func (d *delayLine) push(x float64) {
	d.head = (d.head + 1) % len(d.ring)
	d.ring[d.head] = x
}

func (d *delayLine) convolve() float64 {
	var acc float64
	idx := d.head
	for _, tap := range firTaps {
		acc += tap * d.ring[idx]
		idx--
		if idx < 0 {
			idx = len(d.ring) - 1
		}
	}
	return acc
}

// Upsampler converts mono 8kHz PCM to mono 48kHz PCM: zero-stuff by
// resampleFactor, then low-pass filter to reconstruct the missing samples.
// State persists across calls so packet boundaries introduce no clicks.
type Upsampler struct {
	line delayLine
}

func NewUpsampler() *Upsampler {
	return &Upsampler{line: newDelayLine()}
}

// Upsample writes len(in)*resampleFactor samples to out.
func (u *Upsampler) Upsample(in []int16, out []int16) {
	oi := 0
	for _, s := range in {
		for k := 0; k < resampleFactor; k++ {
			if k == 0 {
				u.line.push(float64(s) * resampleFactor)
			} else {
				u.line.push(0)
			}
			out[oi] = clampInt16(u.line.convolve())
			oi++
		}
	}
}

// Downsampler converts mono 48kHz PCM to mono 8kHz PCM: low-pass filter to
// remove content above the 8kHz Nyquist limit, then decimate by
// resampleFactor.
type Downsampler struct {
	line delayLine
}

func NewDownsampler() *Downsampler {
	return &Downsampler{line: newDelayLine()}
}

// Downsample reads len(out)*resampleFactor samples from in.
func (d *Downsampler) Downsample(in []int16, out []int16) {
	for i := range out {
		var last float64
		for k := 0; k < resampleFactor; k++ {
			d.line.push(float64(in[i*resampleFactor+k]))
			last = d.line.convolve()
		}
		out[i] = clampInt16(last)
	}
}

// makeStereo expands frames mono samples in data[:frames] into frames
// interleaved stereo samples in data[:frames*2], in place. It walks from
// the end so the expanding write never overtakes the shrinking read.
func makeStereo(data []int16, frames int) {
	for i := frames - 1; i >= 0; i-- {
		data[i*2] = data[i]
		data[i*2+1] = data[i]
	}
}

// makeMono downmixes frames interleaved stereo samples from src into frames
// mono samples in dst, scaling the sum of both channels by gain.
func makeMono(src []int16, dst []int16, frames int, gain float64) {
	for i := 0; i < frames; i++ {
		left := float64(src[i*2])
		right := float64(src[i*2+1])
		dst[i] = clampInt16((left + right) * gain)
	}
}
