package encode

import (
	"context"
	"log/slog"

	"cadence/internal/config"
	"cadence/internal/deps"
	"cadence/internal/logging"
	"cadence/internal/services"
)

// SelectEncoder probes ffmpeg once and builds the encoder stack the config
// asks for. "auto" takes hardware with software fallback when a hardware
// codec is present, plain software otherwise. "hardware" fails fast when no
// hardware codec is compiled in.
func SelectEncoder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*FallbackEncoder, error) {
	log := logging.NewComponentLogger(logger, "encode")
	binary := cfg.Encoder.FFmpegBinary

	if cfg.Encoder.Preferred == "software" {
		return NewFallbackEncoder(nil, NewSoftwareEncoder(binary, logger), logger), nil
	}

	codec, err := deps.HardwareEncoder(ctx, binary)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "encode", "select", "encoder probe failed", err)
	}

	if codec == "" {
		if cfg.Encoder.Preferred == "hardware" {
			return nil, services.Wrap(services.ErrExternalTool, "encode", "select",
				"hardware encoding requested but ffmpeg has no hardware H.264 encoder", nil)
		}
		log.Info("no hardware encoder available, using software")
		return NewFallbackEncoder(nil, NewSoftwareEncoder(binary, logger), logger), nil
	}

	log.Info("hardware encoder selected", logging.String("codec", codec))
	return NewFallbackEncoder(
		NewHardwareEncoder(binary, codec, logger),
		NewSoftwareEncoder(binary, logger),
		logger,
	), nil
}
