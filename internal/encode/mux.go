package encode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cadence/internal/services"
)

// mux concatenates the encoded segments and muxes the audio track into the
// final container. Video is stream-copied; only the audio is transcoded.
func mux(ctx context.Context, binary string, params EncodeParams, segments []string) (string, error) {
	if len(segments) == 0 {
		return "", services.Wrap(services.ErrEncoding, "encode", "mux", "no segments to concatenate", nil)
	}

	listPath := filepath.Join(params.WorkDir, "segments.txt")
	var list strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&list, "file '%s'\n", segment)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "mux", "write concat list", err)
	}

	args := []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
	}
	if params.AudioPath != "" {
		args = append(args,
			"-i", params.AudioPath,
			"-map", "0:v", "-map", "1:a",
			"-c:a", "aac", "-b:a", params.AudioBitrate,
			"-shortest",
		)
	} else {
		args = append(args, "-map", "0:v")
	}
	args = append(args, "-c:v", "copy", params.OutputPath)

	cmd := commandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrCancelled, "encode", "mux", "mux cancelled", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 400 {
			detail = "..." + detail[len(detail)-400:]
		}
		return "", services.Wrap(services.ErrEncoding, "encode", "mux", detail, err)
	}
	return params.OutputPath, nil
}
