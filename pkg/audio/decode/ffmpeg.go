// ABOUTME: ffmpeg subprocess decoder for container formats without a Go decoder
// ABOUTME: Probes with ffprobe and restarts ffmpeg at the target time on seek
package decode

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

const probeTimeout = 10 * time.Second

type ffmpegReader struct {
	path       string
	sampleRate int
	channels   int
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	reader     *bufio.Reader
	buf        []byte
}

type probeResult struct {
	Streams []struct {
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		CodecName  string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probe asks ffprobe for the first audio stream's format and the duration
func probe(path string) (sampleRate, channels int, codec string, duration float64, err error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, 0, "", 0, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels,codec_name:format=duration",
		"-of", "json",
		path).Output()
	if err != nil {
		return 0, 0, "", 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, 0, "", 0, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(res.Streams) == 0 {
		return 0, 0, "", 0, fmt.Errorf("no audio stream")
	}

	sampleRate, _ = strconv.Atoi(res.Streams[0].SampleRate)
	duration, _ = strconv.ParseFloat(res.Format.Duration, 64)
	return sampleRate, res.Streams[0].Channels, res.Streams[0].CodecName, duration, nil
}

// openFFmpeg decodes path through ffmpeg. A zero sampleRate or channels
// is filled in from ffprobe.
func openFFmpeg(path, codec string, sampleRate, channels int) (*ffmpegReader, audio.StreamInfo, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: ffmpeg not found in PATH: %v", ErrUnsupportedFormat, err)
	}

	var total int64
	pRate, pChannels, pCodec, duration, err := probe(path)
	switch {
	case err == nil:
		if sampleRate == 0 {
			sampleRate = pRate
		}
		if channels == 0 {
			channels = pChannels
		}
		if pCodec != "" {
			codec = pCodec
		}
	case sampleRate == 0 || channels == 0:
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	default:
		log.Printf("ffprobe unavailable for %s, length unknown: %v", path, err)
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, audio.StreamInfo{}, fmt.Errorf("%w: no usable audio stream in %s", ErrCorruptFile, path)
	}
	if channels > 2 {
		// Downmixed by ffmpeg
		channels = 2
	}
	if duration > 0 {
		total = int64(math.Round(duration * float64(sampleRate)))
	}

	r := &ffmpegReader{
		path:       path,
		sampleRate: sampleRate,
		channels:   channels,
	}
	if err := r.start(0); err != nil {
		return nil, audio.StreamInfo{}, err
	}

	info := audio.StreamInfo{
		Format: audio.Format{
			Codec:      codec,
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   32,
			Float:      true,
		},
		TotalFrames: total,
	}
	return r, info, nil
}

// start launches ffmpeg decoding from the given frame
func (r *ffmpegReader) start(frame int64) error {
	args := []string{"-loglevel", "error"}
	if frame > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(frame)/float64(r.sampleRate), 'f', 6, 64))
	}
	args = append(args,
		"-i", r.path,
		"-f", "f32le",
		"-ar", strconv.Itoa(r.sampleRate),
		"-ac", strconv.Itoa(r.channels),
		"-")

	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.stdout = stdout
	r.reader = bufio.NewReaderSize(stdout, 64*1024)
	return nil
}

func (r *ffmpegReader) readFrames(dst []float64) (int, error) {
	frameBytes := 4 * r.channels
	need := (len(dst) / r.channels) * frameBytes
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:need]

	n, err := io.ReadFull(r.reader, buf)
	frames := n / frameBytes
	for i := 0; i < frames*r.channels; i++ {
		dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return frames, io.EOF
	}
	return frames, err
}

func (r *ffmpegReader) seekFrame(frame int64) error {
	r.stop()
	return r.start(frame)
}

func (r *ffmpegReader) stop() {
	if r.stdout != nil {
		r.stdout.Close()
	}
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
		r.cmd.Wait()
	}
	r.cmd = nil
	r.stdout = nil
}

func (r *ffmpegReader) close() error {
	r.stop()
	return nil
}
