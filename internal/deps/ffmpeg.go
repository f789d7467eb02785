package deps

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// hardwareEncoders lists the H.264 hardware encoders Cadence knows how to
// drive, in preference order per platform.
var hardwareEncoders = map[string][]string{
	"darwin":  {"h264_videotoolbox"},
	"linux":   {"h264_nvenc", "h264_qsv", "h264_vaapi"},
	"windows": {"h264_nvenc", "h264_qsv"},
}

var commandContext = exec.CommandContext

// HardwareEncoder reports the preferred hardware H.264 encoder compiled into
// the given ffmpeg binary, or empty when only software encoding is available.
// The probe lists encoders once at job start; availability is never
// re-discovered per frame.
func HardwareEncoder(ctx context.Context, ffmpegBinary string) (string, error) {
	cmd := commandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	available := parseEncoderList(output)
	for _, name := range hardwareEncoders[runtime.GOOS] {
		if available[name] {
			return name, nil
		}
	}
	return "", nil
}

// parseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Lines look like " V....D h264_nvenc  NVIDIA NVENC H.264 encoder".
func parseEncoderList(output []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	seenHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !seenHeader {
			if strings.HasPrefix(line, "---") {
				seenHeader = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// First field is the capability flags, second the encoder name.
		if strings.HasPrefix(fields[0], "V") {
			encoders[fields[1]] = true
		}
	}
	return encoders
}
