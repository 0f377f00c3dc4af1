package audio

import "encoding/binary"

// Resample converts linear16 samples from one rate to another using linear
// interpolation. Good enough for speech going into a transcriber; not meant
// for music.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := range result {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
			continue
		}

		s1 := float64(samples[srcIdx])
		s2 := float64(samples[srcIdx+1])
		result[i] = int16(s1 + frac*(s2-s1))
	}

	return result
}

// ResampleBytes resamples raw little-endian linear16 PCM.
func ResampleBytes(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate {
		return pcm
	}

	resampled := Resample(Samples(pcm), fromRate, toRate)
	out := make([]byte, len(resampled)*2)
	for i, s := range resampled {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
