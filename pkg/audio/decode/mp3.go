// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to float frames with byte-accurate seeking
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always outputs 16-bit stereo
const mp3BytesPerFrame = 4

type mp3Reader struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
}

func openMP3(path string) (*mp3Reader, audio.StreamInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: failed to decode MP3: %v", ErrCorruptFile, err)
	}

	total := decoder.Length() / mp3BytesPerFrame
	if total < 0 {
		total = 0
	}

	info := audio.StreamInfo{
		Format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
		TotalFrames: total,
	}

	return &mp3Reader{file: f, decoder: decoder}, info, nil
}

func (r *mp3Reader) readFrames(dst []float64) (int, error) {
	frames := len(dst) / 2
	need := frames * mp3BytesPerFrame
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:need]

	n, err := io.ReadFull(r.decoder, buf)
	got := n / mp3BytesPerFrame
	for i := 0; i < got*2; i++ {
		dst[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return got, io.EOF
	}
	return got, err
}

func (r *mp3Reader) seekFrame(frame int64) error {
	if _, err := r.decoder.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek failed: %w", err)
	}
	return nil
}

func (r *mp3Reader) close() error {
	return r.file.Close()
}
