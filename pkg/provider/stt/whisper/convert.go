package whisper

import "encoding/binary"

// pcmToFloat32 converts 16-bit signed little-endian mono PCM to float32
// samples normalised to [-1.0, 1.0], the input format whisper.cpp expects.
// A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}
