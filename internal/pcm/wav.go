// Package pcm holds helpers for 16-bit little-endian PCM audio.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnaligned is returned for payloads that are not whole 16-bit samples.
var ErrUnaligned = errors.New("pcm payload not aligned")

// Format describes raw PCM16LE audio.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPer returns the byte length of d milliseconds of audio.
func (f Format) BytesPer(ms int) int {
	n := f.SampleRate * f.Channels * 2 * ms / 1000
	if n%2 != 0 {
		n++
	}
	return n
}

// WriteWAV encodes PCM16LE samples as a WAV file.
func WriteWAV(w io.WriteSeeker, data []byte, format Format) error {
	if len(data)%2 != 0 {
		return ErrUnaligned
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate}}
	samples := make([]int, len(data)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(w, format.SampleRate, 16, format.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// ReadWAV decodes a 16-bit WAV file into PCM16LE bytes.
func ReadWAV(r io.ReadSeeker) ([]byte, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, errors.New("invalid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, Format{}, fmt.Errorf("unsupported wav bit depth %d", dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("decode wav: %w", err)
	}
	out := make([]byte, len(buf.Data)*2)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out, Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}, nil
}

// RMS returns the root mean square amplitude of a PCM16LE frame.
func RMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
