// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Wraps the beep vorbis streamer as a frame reader
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/vorbis"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

type vorbisReader struct {
	streamer beep.StreamSeekCloser
	channels int
	tmp      [][2]float64
}

func openVorbis(path string) (*vorbisReader, audio.StreamInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open Ogg file: %w", err)
	}

	// Decode takes ownership of f
	streamer, format, err := vorbis.Decode(f)
	if err != nil {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: failed to decode Vorbis: %v", ErrCorruptFile, err)
	}

	channels := format.NumChannels
	if channels < 1 || channels > 2 {
		channels = 2
	}

	info := audio.StreamInfo{
		Format: audio.Format{
			Codec:      "vorbis",
			SampleRate: int(format.SampleRate),
			Channels:   channels,
			BitDepth:   format.Precision * 8,
			Float:      true,
		},
		TotalFrames: int64(streamer.Len()),
	}

	return &vorbisReader{streamer: streamer, channels: channels}, info, nil
}

func (r *vorbisReader) readFrames(dst []float64) (int, error) {
	want := len(dst) / r.channels
	if cap(r.tmp) < want {
		r.tmp = make([][2]float64, want)
	}
	tmp := r.tmp[:want]

	n, ok := r.streamer.Stream(tmp)
	for i := 0; i < n; i++ {
		if r.channels == 1 {
			dst[i] = tmp[i][0]
			continue
		}
		dst[i*2] = tmp[i][0]
		dst[i*2+1] = tmp[i][1]
	}

	if !ok {
		if err := r.streamer.Err(); err != nil {
			return n, err
		}
		return n, io.EOF
	}
	return n, nil
}

func (r *vorbisReader) seekFrame(frame int64) error {
	if err := r.streamer.Seek(int(frame)); err != nil {
		return fmt.Errorf("vorbis seek failed: %w", err)
	}
	return nil
}

func (r *vorbisReader) close() error {
	return r.streamer.Close()
}
