// ABOUTME: AAC (ADTS) file support
// ABOUTME: Validates ADTS headers with go-aac and decodes through ffmpeg
package decode

import (
	"fmt"

	aac "github.com/llehouerou/go-aac"

	"github.com/Resonate-Protocol/resonate-deck/pkg/audio"
)

// adtsOffset returns the offset of the first ADTS syncword, skipping an ID3v2 tag
func adtsOffset(data []byte) (int, bool) {
	off := 0
	if len(data) >= 10 && string(data[:3]) == "ID3" {
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		off = 10 + size
	}
	if off+1 >= len(data) {
		return 0, false
	}
	return off, data[off] == 0xFF && data[off+1]&0xF0 == 0xF0
}

// probeADTS reads the stream parameters from the first ADTS header
func probeADTS(data []byte) (sampleRate, channels int, err error) {
	off, ok := adtsOffset(data)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no ADTS syncword", ErrCorruptFile)
	}

	dec := aac.NewDecoder()
	defer dec.Close()

	rate, ch, err := dec.SimpleInit(data[off:])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ADTS header: %v", ErrCorruptFile, err)
	}
	if rate == 0 || ch == 0 {
		return 0, 0, fmt.Errorf("%w: ADTS header without rate or channels", ErrCorruptFile)
	}
	return int(rate), int(ch), nil
}

func openAAC(path string) (*ffmpegReader, audio.StreamInfo, error) {
	head, err := sniff(path, 64*1024)
	if err != nil {
		return nil, audio.StreamInfo{}, fmt.Errorf("failed to open AAC file: %w", err)
	}

	sampleRate, channels, err := probeADTS(head)
	if err != nil {
		return nil, audio.StreamInfo{}, err
	}

	return openFFmpeg(path, "aac", sampleRate, channels)
}
