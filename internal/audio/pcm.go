// Package audio decodes synthesized speech and manages single-clip playback.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"time"
)

// DefaultSampleRate is the rate speech arrives at when the media type does not say.
const DefaultSampleRate = 24000

// ErrInvalidPCM is returned for payloads that are not 16-bit PCM.
var ErrInvalidPCM = errors.New("invalid pcm payload")

// Buffer holds decoded samples in the range -1..1.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.Channels <= 1 {
		return len(b.Samples)
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.SampleRate))
}

// Empty reports whether the buffer has no samples.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// DecodePCM16 decodes base64 little-endian signed 16-bit mono PCM.
func DecodePCM16(encoded string, sampleRate int) (Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidPCM, err)
	}
	return DecodePCM16Bytes(data, sampleRate)
}

// DecodePCM16Bytes decodes raw little-endian signed 16-bit mono PCM.
func DecodePCM16Bytes(data []byte, sampleRate int) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, fmt.Errorf("%w: no samples", ErrInvalidPCM)
	}
	if len(data)%2 != 0 {
		return Buffer{}, fmt.Errorf("%w: odd byte count %d", ErrInvalidPCM, len(data))
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: 1}, nil
}

// SampleRateFromMime reads the rate parameter of a media type such as
// "audio/L16;codec=pcm;rate=24000".
func SampleRateFromMime(mediaType string) int {
	_, params, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return DefaultSampleRate
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return DefaultSampleRate
	}
	return rate
}
