// Package sfcodec packs and unpacks interleaved PCM sample frames between
// on-disk byte buffers and in-memory float32 vectors. It knows nothing
// about containers or files; sfheader and the engines above it own that.
package sfcodec

import (
	"fmt"
	"math"
)

// scale16 maps a 16-bit or 24-bit integer sample, left-justified into the
// high bits of a 32-bit word, to the [-1, 1] float domain.
const scale16 = 1.0 / 2147483648.0 // 2^-31

// XferIn decodes frames frames of channels-channel, bps-byte PCM samples
// from buf into vecs, one destination slice per channel. Channels beyond
// len(vecs) are dropped; destination slices beyond channels are zeroed.
// stride lets a caller interleave into a wider per-sample record; callers
// writing into plain contiguous float32 slices pass stride=1.
func XferIn(channels int, vecs [][]float32, startFrame, frames int, buf []byte, bps int, bigEndian bool, stride int) error {
	if bps != 2 && bps != 3 && bps != 4 {
		return fmt.Errorf("sfcodec: unsupported bytes_per_sample %d", bps)
	}

	frameBytes := bps * channels

	for ch := range vecs {
		dst := vecs[ch]
		if ch >= channels {
			for f := range frames {
				idx := (startFrame + f) * stride
				if idx < len(dst) {
					dst[idx] = 0
				}
			}
			continue
		}

		for f := range frames {
			off := f*frameBytes + ch*bps
			if off+bps > len(buf) {
				break
			}
			var sample float32
			switch bps {
			case 2:
				sample = decode16(buf[off:off+2], bigEndian)
			case 3:
				sample = decode24(buf[off:off+3], bigEndian)
			case 4:
				sample = decode32f(buf[off:off+4], bigEndian)
			}
			idx := (startFrame + f) * stride
			if idx < len(dst) {
				dst[idx] = sample
			}
		}
	}

	return nil
}

func decode16(b []byte, bigEndian bool) float32 {
	var hi, lo byte
	if bigEndian {
		hi, lo = b[0], b[1]
	} else {
		hi, lo = b[1], b[0]
	}
	word := uint32(hi)<<24 | uint32(lo)<<16
	return float32(int32(word)) * scale16
}

func decode24(b []byte, bigEndian bool) float32 {
	var b0, b1, b2 byte
	if bigEndian {
		b0, b1, b2 = b[0], b[1], b[2]
	} else {
		b0, b1, b2 = b[2], b[1], b[0]
	}
	word := uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8
	return float32(int32(word)) * scale16
}

func decode32f(b []byte, bigEndian bool) float32 {
	var word uint32
	if bigEndian {
		word = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	} else {
		word = uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
	}
	return math.Float32frombits(word)
}

// XferOut encodes frames frames of channels-channel, bps-byte PCM samples
// from vecs into buf (which must be at least frames*channels*bps bytes),
// applying normFactor during the conversion. stride mirrors XferIn.
func XferOut(channels int, vecs [][]float32, startFrame, frames int, buf []byte, bps int, bigEndian bool, stride int, normFactor float32) error {
	if bps != 2 && bps != 3 && bps != 4 {
		return fmt.Errorf("sfcodec: unsupported bytes_per_sample %d", bps)
	}

	frameBytes := bps * channels

	for ch := 0; ch < channels; ch++ {
		var src []float32
		if ch < len(vecs) {
			src = vecs[ch]
		}

		for f := range frames {
			off := f*frameBytes + ch*bps
			if off+bps > len(buf) {
				break
			}

			var sample float32
			idx := (startFrame + f) * stride
			if src != nil && idx < len(src) {
				sample = src[idx]
			}

			switch bps {
			case 2:
				encode16(buf[off:off+2], sample, normFactor, bigEndian)
			case 3:
				encode24(buf[off:off+3], sample, normFactor, bigEndian)
			case 4:
				encode32f(buf[off:off+4], sample, normFactor, bigEndian)
			}
		}
	}

	return nil
}

// saturate clamps an integer word to [-(2^(bits-1)-1), 2^(bits-1)-1], the
// symmetric range the original packs into (it never emits the most
// negative representable value).
func saturate(v int32, bits int) int32 {
	max := int32(1)<<(bits-1) - 1
	min := -max
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

func quantize(sample, normFactor float32, bits int) int32 {
	half := float32(int64(1) << (bits - 1))
	scaled := float64(sample)*float64(normFactor)*float64(half) + float64(half)
	v := int32(scaled) - int32(half)
	return saturate(v, bits)
}

func encode16(b []byte, sample, normFactor float32, bigEndian bool) {
	v := quantize(sample, normFactor, 16)
	hi := byte(v >> 8)
	lo := byte(v)
	if bigEndian {
		b[0], b[1] = hi, lo
	} else {
		b[0], b[1] = lo, hi
	}
}

func encode24(b []byte, sample, normFactor float32, bigEndian bool) {
	v := quantize(sample, normFactor, 24)
	b0 := byte(v >> 16)
	b1 := byte(v >> 8)
	b2 := byte(v)
	if bigEndian {
		b[0], b[1], b[2] = b0, b1, b2
	} else {
		b[0], b[1], b[2] = b2, b1, b0
	}
}

func encode32f(b []byte, sample, normFactor float32, bigEndian bool) {
	word := math.Float32bits(sample * normFactor)
	if bigEndian {
		b[0] = byte(word >> 24)
		b[1] = byte(word >> 16)
		b[2] = byte(word >> 8)
		b[3] = byte(word)
	} else {
		b[0] = byte(word)
		b[1] = byte(word >> 8)
		b[2] = byte(word >> 16)
		b[3] = byte(word >> 24)
	}
}

// PeakNormFactor scans vecs[:channels] for the largest absolute sample and
// returns the factor that maps that peak to just under full scale, or 1 if
// the peak is zero or normalization isn't needed.
func PeakNormFactor(channels int, vecs [][]float32, frames int, bps int, forceNormalize bool) float32 {
	var peak float32
	for ch := 0; ch < channels && ch < len(vecs); ch++ {
		for i := 0; i < frames && i < len(vecs[ch]); i++ {
			v := vecs[ch][i]
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}

	needsNormalize := forceNormalize || (bps < 4 && peak > 1.0)
	if !needsNormalize || peak == 0 {
		return 1
	}

	return float32(32767.0 / (32768.0 * float64(peak)))
}
