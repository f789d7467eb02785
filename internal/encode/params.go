package encode

import (
	"fmt"
	"strings"

	"cadence/internal/services"
)

// EncodeParams describes one encoding job. Width and Height are final-frame
// dimensions; submitted buffers are cropped to this size before piping.
type EncodeParams struct {
	Width        int
	Height       int
	FPS          int
	AudioPath    string
	OutputPath   string
	WorkDir      string
	CRF          int
	Preset       string
	AudioBitrate string
}

func (p EncodeParams) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return services.Wrap(services.ErrValidation, "encode", "params",
			fmt.Sprintf("invalid frame size %dx%d", p.Width, p.Height), nil)
	}
	if p.Width%2 != 0 || p.Height%2 != 0 {
		return services.Wrap(services.ErrValidation, "encode", "params",
			"frame dimensions must be even for 4:2:0 output", nil)
	}
	if p.FPS <= 0 {
		return services.Wrap(services.ErrValidation, "encode", "params",
			fmt.Sprintf("invalid frame rate %d", p.FPS), nil)
	}
	if strings.TrimSpace(p.OutputPath) == "" {
		return services.Wrap(services.ErrValidation, "encode", "params", "output path required", nil)
	}
	if strings.TrimSpace(p.WorkDir) == "" {
		return services.Wrap(services.ErrValidation, "encode", "params", "work dir required", nil)
	}
	return nil
}
