// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Opus files at 48kHz using the libopusfile stream reader
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// Opus always decodes at 48kHz
const opusSampleRate = 48000

type opusReader struct {
	file     *os.File
	size     int64
	stream   *opus.Stream
	channels int
	tmp      []float32
}

// opusHead holds the fields of the OpusHead identification packet we need
type opusHead struct {
	channels int
	preSkip  int64
}

func parseOpusHead(data []byte) (opusHead, error) {
	i := bytes.Index(data, []byte("OpusHead"))
	if i < 0 || len(data) < i+12 {
		return opusHead{}, fmt.Errorf("%w: missing OpusHead packet", ErrCorruptFile)
	}
	head := opusHead{
		channels: int(data[i+9]),
		preSkip:  int64(binary.LittleEndian.Uint16(data[i+10:])),
	}
	if head.channels < 1 || head.channels > 2 {
		return opusHead{}, fmt.Errorf("%w: %d-channel Opus", ErrUnsupportedFormat, head.channels)
	}
	return head, nil
}

// lastGranule returns the granule position of the final Ogg page
func lastGranule(f io.ReaderAt, size int64) (int64, error) {
	tail := int64(65536)
	if tail > size {
		tail = size
	}

	buf := make([]byte, tail)
	if _, err := f.ReadAt(buf, size-tail); err != nil && err != io.EOF {
		return 0, err
	}

	i := bytes.LastIndex(buf, []byte("OggS"))
	if i < 0 || len(buf) < i+14 {
		return 0, fmt.Errorf("no Ogg page found")
	}
	return int64(binary.LittleEndian.Uint64(buf[i+6:])), nil
}

func openOpus(path string) (*opusReader, audio.StreamInfo, error) {
	head, err := sniff(path, 512)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open Opus file: %w", err)
	}
	oh, err := parseOpusHead(head)
	if err != nil {
		return nil, audio.StreamInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open Opus file: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to stat Opus file: %w", err)
	}

	var total int64
	if granule, err := lastGranule(f, st.Size()); err == nil && granule > oh.preSkip {
		total = granule - oh.preSkip
	}

	// A section reader keeps Stream.Close from closing the file
	stream, err := opus.NewStream(io.NewSectionReader(f, 0, st.Size()))
	if err != nil {
		f.Close()
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: failed to decode Opus: %v", ErrCorruptFile, err)
	}

	info := audio.StreamInfo{
		Format: audio.Format{
			Codec:      "opus",
			SampleRate: opusSampleRate,
			Channels:   oh.channels,
			BitDepth:   16,
			Float:      true,
		},
		TotalFrames: total,
	}

	return &opusReader{file: f, size: st.Size(), stream: stream, channels: oh.channels}, info, nil
}

func (r *opusReader) readFrames(dst []float64) (int, error) {
	if cap(r.tmp) < len(dst) {
		r.tmp = make([]float32, len(dst))
	}
	tmp := r.tmp[:len(dst)]

	// ReadFloat32 returns samples per channel
	n, err := r.stream.ReadFloat32(tmp)
	for i := 0; i < n*r.channels; i++ {
		dst[i] = float64(tmp[i])
	}
	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, fmt.Errorf("opus decode failed: %w", err)
	}
	return n, nil
}

// seekFrame restarts the stream from the first page and skips forward
func (r *opusReader) seekFrame(frame int64) error {
	if err := r.stream.Close(); err != nil {
		return fmt.Errorf("opus seek failed: %w", err)
	}
	stream, err := opus.NewStream(io.NewSectionReader(r.file, 0, r.size))
	if err != nil {
		return fmt.Errorf("opus seek failed: %w", err)
	}
	r.stream = stream
	return skipFrames(r, frame, r.channels)
}

func (r *opusReader) close() error {
	r.stream.Close()
	return r.file.Close()
}
