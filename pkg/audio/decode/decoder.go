// ABOUTME: Stream interface and file opener for all supported formats
// ABOUTME: Wraps per-format frame readers into fixed-size block streams
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

var (
	// ErrUnsupportedFormat is returned for files no backend can decode
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptFile is returned when a file's contents cannot be decoded
	ErrCorruptFile = errors.New("corrupt file")
	// ErrSeekOutOfRange is returned for seeks outside [0, TotalFrames)
	ErrSeekOutOfRange = errors.New("seek out of range")
)

// Extensions lists the file extensions Open accepts
var Extensions = []string{".mp3", ".wav", ".flac", ".ogg", ".oga", ".opus", ".aac", ".m4a", ".mp4"}

// Stream produces fixed-size PCM blocks from one audio source
type Stream interface {
	// Info describes the stream
	Info() audio.StreamInfo

	// ReadBlock returns the next block, or io.EOF at end of stream
	ReadBlock() (audio.Block, error)

	// SeekFrame repositions the stream to the given frame
	SeekFrame(frame int64) error

	// Close releases decoder resources
	Close() error
}

// frameReader is implemented by each format backend
type frameReader interface {
	// readFrames fills dst with interleaved samples and returns frames read.
	// It returns io.EOF once no more frames are available.
	readFrames(dst []float64) (int, error)

	// seekFrame positions the reader so the next frame read is frame
	seekFrame(frame int64) error

	close() error
}

// Option configures Open
type Option func(*options)

type options struct {
	blockFrames int
}

// WithBlockFrames sets the number of frames per block
func WithBlockFrames(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockFrames = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{blockFrames: audio.DefaultBlockFrames}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Supported reports whether the path has an extension Open accepts
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Open opens an audio file and returns a block stream over it
func Open(path string, opts ...Option) (Stream, error) {
	o := buildOptions(opts)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var (
		reader frameReader
		info   audio.StreamInfo
		err    error
	)

	switch ext {
	case ".mp3":
		reader, info, err = openMP3(path)
	case ".flac":
		reader, info, err = openFLAC(path)
	case ".wav":
		reader, info, err = openWAV(path)
	case ".ogg", ".oga":
		if isOpusFile(path) {
			reader, info, err = openOpus(path)
		} else {
			reader, info, err = openVorbis(path)
		}
	case ".opus":
		reader, info, err = openOpus(path)
	case ".aac":
		reader, info, err = openAAC(path)
	case ".m4a", ".mp4":
		reader, info, err = openFFmpeg(path, "aac", 0, 0)
	default:
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, err
	}

	info.Path = path
	log.Printf("Opened %s: %s %dHz %dch %d-bit, %d frames (%v)",
		filepath.Base(path), info.Format.Codec, info.Format.SampleRate, info.Format.Channels,
		info.Format.BitDepth, info.TotalFrames, info.Duration())

	return newBlockStream(info, reader, o.blockFrames), nil
}

// blockStream cuts a frame reader's output into fixed-size blocks
type blockStream struct {
	info        audio.StreamInfo
	src         frameReader
	blockFrames int
	pos         int64
	index       int64
	eof         bool
}

func newBlockStream(info audio.StreamInfo, src frameReader, blockFrames int) *blockStream {
	if blockFrames <= 0 {
		blockFrames = audio.DefaultBlockFrames
	}
	return &blockStream{
		info:        info,
		src:         src,
		blockFrames: blockFrames,
	}
}

func (s *blockStream) Info() audio.StreamInfo {
	return s.info
}

// ReadBlock reads exactly blockFrames frames unless the stream ends first
func (s *blockStream) ReadBlock() (audio.Block, error) {
	if s.eof {
		return audio.Block{}, io.EOF
	}

	ch := s.info.Format.Channels
	buf := make([]float64, s.blockFrames*ch)
	frames := 0
	stalls := 0

	for frames < s.blockFrames {
		n, err := s.src.readFrames(buf[frames*ch:])
		frames += n
		if err == io.EOF {
			s.eof = true
			break
		}
		if err != nil {
			return audio.Block{}, fmt.Errorf("%w: %s: %v", ErrCorruptFile, s.info.Path, err)
		}
		if n == 0 {
			stalls++
			if stalls > 16 {
				return audio.Block{}, fmt.Errorf("%w: %s: decoder made no progress", ErrCorruptFile, s.info.Path)
			}
			continue
		}
		stalls = 0
	}

	if frames == 0 {
		return audio.Block{}, io.EOF
	}

	block := audio.Block{
		Index:      s.index,
		Offset:     s.pos,
		SampleRate: s.info.Format.SampleRate,
		Channels:   ch,
		Samples:    buf[:frames*ch],
	}
	s.index++
	s.pos += int64(frames)
	return block, nil
}

// SeekFrame moves to frame; the next block starts there
func (s *blockStream) SeekFrame(frame int64) error {
	if frame < 0 || (s.info.TotalFrames > 0 && frame >= s.info.TotalFrames) {
		return fmt.Errorf("%w: frame %d of %d", ErrSeekOutOfRange, frame, s.info.TotalFrames)
	}
	if err := s.src.seekFrame(frame); err != nil {
		if errors.Is(err, io.EOF) {
			s.pos = frame
			s.eof = true
			return nil
		}
		return fmt.Errorf("seek %s to frame %d: %w", s.info.Path, frame, err)
	}
	s.pos = frame
	s.eof = false
	return nil
}

func (s *blockStream) Close() error {
	return s.src.close()
}

// skipFrames discards n frames from r in bounded chunks
func skipFrames(r frameReader, n int64, channels int) error {
	if n <= 0 {
		return nil
	}
	scratch := make([]float64, 4096*channels)
	for n > 0 {
		want := int64(len(scratch) / channels)
		if want > n {
			want = n
		}
		got, err := r.readFrames(scratch[:want*int64(channels)])
		n -= int64(got)
		if err != nil {
			return err
		}
		if got == 0 {
			return io.ErrNoProgress
		}
	}
	return nil
}

// sniff reads up to n bytes from the start of a file
func sniff(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

// isOpusFile reports whether an Ogg file carries an Opus stream
func isOpusFile(path string) bool {
	head, err := sniff(path, 512)
	if err != nil {
		return false
	}
	return bytes.Contains(head, []byte("OpusHead"))
}
