// ABOUTME: WAV audio decoder
// ABOUTME: Decodes 8/16/24/32-bit integer PCM WAV files to float frames
package decode

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

const wavFormatFloat = 3

type wavReader struct {
	file     *os.File
	decoder  *wav.Decoder
	channels int
	bitDepth int
	buf      *goaudio.IntBuffer
}

func openWAV(path string) (*wavReader, audio.StreamInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: invalid WAV file: %s", ErrCorruptFile, path)
	}

	if decoder.WavAudioFormat == wavFormatFloat {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: IEEE float WAV", ErrUnsupportedFormat)
	}

	bitDepth := int(decoder.BitDepth)
	channels := int(decoder.NumChans)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, bitDepth)
	}
	if channels == 0 || decoder.SampleRate == 0 {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: WAV header without channels or sample rate", ErrCorruptFile)
	}

	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: no PCM chunk: %v", ErrCorruptFile, err)
	}

	info := audio.StreamInfo{
		Format: audio.Format{
			Codec:      "wav",
			SampleRate: int(decoder.SampleRate),
			Channels:   channels,
			BitDepth:   bitDepth,
		},
		TotalFrames: int64(decoder.PCMSize) / int64(channels*bitDepth/8),
	}

	r := &wavReader{
		file:     f,
		decoder:  decoder,
		channels: channels,
		bitDepth: bitDepth,
		buf: &goaudio.IntBuffer{
			Format:         decoder.Format(),
			SourceBitDepth: bitDepth,
		},
	}
	return r, info, nil
}

func (r *wavReader) readFrames(dst []float64) (int, error) {
	if cap(r.buf.Data) < len(dst) {
		r.buf.Data = make([]int, len(dst))
	}
	r.buf.Data = r.buf.Data[:len(dst)]

	n, err := r.decoder.PCMBuffer(r.buf)
	frames := n / r.channels
	for i := 0; i < frames*r.channels; i++ {
		v := r.buf.Data[i]
		if r.bitDepth == 8 {
			// 8-bit WAV is unsigned
			dst[i] = float64(v-128) / 128.0
		} else {
			dst[i] = audio.SampleFromInt(int64(v), r.bitDepth)
		}
	}

	if err == io.EOF || (err == nil && n == 0) {
		return frames, io.EOF
	}
	return frames, err
}

// seekFrame reparses the header up to the PCM chunk and skips forward
func (r *wavReader) seekFrame(frame int64) error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav rewind failed: %w", err)
	}
	r.decoder = wav.NewDecoder(r.file)
	if err := r.decoder.FwdToPCM(); err != nil {
		return fmt.Errorf("wav rewind failed: %w", err)
	}
	return skipFrames(r, frame, r.channels)
}

func (r *wavReader) close() error {
	return r.file.Close()
}
