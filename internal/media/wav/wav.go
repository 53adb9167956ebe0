// Package wav wraps raw little-endian PCM in a canonical RIFF/WAVE container.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the length of the canonical PCM header written by Encode.
const HeaderSize = 44

// Format describes the PCM samples being wrapped.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat matches the 24 kHz mono 16-bit audio returned by speech
// synthesis endpoints.
func DefaultFormat() Format {
	return Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

func (f Format) withDefaults() Format {
	def := DefaultFormat()
	if f.SampleRate == 0 {
		f.SampleRate = def.SampleRate
	}
	if f.Channels == 0 {
		f.Channels = def.Channels
	}
	if f.BitsPerSample == 0 {
		f.BitsPerSample = def.BitsPerSample
	}
	return f
}

// Validate reports whether the format can be expressed in a PCM header.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 || f.Channels > 0xffff {
		return fmt.Errorf("wav: invalid channel count %d", f.Channels)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("wav: unsupported bits per sample %d", f.BitsPerSample)
	}
	// BlockAlign is a 16-bit header field and ByteRate a 32-bit one.
	if f.BlockAlign() > 0xffff {
		return fmt.Errorf("wav: %d channels of %d-bit samples exceed the block align field", f.Channels, f.BitsPerSample)
	}
	if uint64(f.SampleRate)*uint64(f.BlockAlign()) > 0xffffffff {
		return fmt.Errorf("wav: byte rate of %d Hz x %d bytes overflows the header", f.SampleRate, f.BlockAlign())
	}
	return nil
}

// BlockAlign is the byte size of one sample frame across all channels.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Header returns the 44-byte header for dataLen bytes of PCM.
func Header(dataLen int, f Format) ([]byte, error) {
	f = f.withDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if dataLen < 0 || uint64(dataLen)+HeaderSize-8 > 0xffffffff {
		return nil, fmt.Errorf("wav: data length %d out of range", dataLen)
	}
	if dataLen%f.BlockAlign() != 0 {
		return nil, fmt.Errorf("wav: data length %d is not a multiple of block align %d", dataLen, f.BlockAlign())
	}

	h := make([]byte, HeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(HeaderSize-8+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(h[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	return h, nil
}

// Encode writes the header followed by pcm to w.
func Encode(w io.Writer, pcm []byte, f Format) error {
	header, err := Header(len(pcm), f)
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("wav: write data: %w", err)
	}
	return nil
}
