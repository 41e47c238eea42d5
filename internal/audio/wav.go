package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV writes the buffer as a 16-bit PCM RIFF/WAVE stream.
func EncodeWAV(w io.Writer, b Buffer) error {
	channels := b.Channels
	if channels <= 0 {
		channels = 1
	}
	rate := b.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	dataSize := uint32(len(b.Samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	pcm := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		pcm[i] = toPCM16(s)
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WAV returns the buffer encoded as a WAV file.
func (b Buffer) WAV() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(b.Samples)*2)
	if err := EncodeWAV(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toPCM16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
