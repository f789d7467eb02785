// Package media probes audio inputs ahead of rendering so the frame count is
// known before the first frame is drawn.
package media

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"cadence/internal/services"
)

// AudioInfo describes the audio track a job renders against.
type AudioInfo struct {
	Path       string
	Duration   time.Duration
	SampleRate int
	Channels   int
	CodecName  string
}

// FrameCount returns the number of video frames needed to cover the audio at
// the given frame rate, rounding up so the last partial frame is included.
func (a AudioInfo) FrameCount(fps int) int64 {
	if a.Duration <= 0 || fps <= 0 {
		return 0
	}
	seconds := a.Duration.Seconds()
	return int64(math.Ceil(seconds * float64(fps)))
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// ProbeAudio inspects the file with ffprobe and returns its audio properties.
// Files without an audio stream are rejected.
func ProbeAudio(path string) (AudioInfo, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return AudioInfo{}, services.Wrap(services.ErrExternalTool, "media", "probe", "ffprobe failed", err)
	}
	return parseProbe(path, raw)
}

func parseProbe(path, raw string) (AudioInfo, error) {
	var result probeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return AudioInfo{}, services.Wrap(services.ErrExternalTool, "media", "probe", "unreadable ffprobe output", err)
	}

	info := AudioInfo{Path: path}
	for _, stream := range result.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		info.CodecName = stream.CodecName
		info.Channels = stream.Channels
		if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
			info.SampleRate = rate
		}
		break
	}
	if info.CodecName == "" {
		return AudioInfo{}, services.Wrap(services.ErrValidation, "media", "probe", "no audio stream in input", nil)
	}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return AudioInfo{}, services.Wrap(services.ErrValidation, "media", "probe", "input has no usable duration", err)
	}
	info.Duration = time.Duration(seconds * float64(time.Second))
	return info, nil
}
