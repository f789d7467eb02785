// Package encode turns ordered frame buffers into an H.264 video by piping
// raw RGBA to an ffmpeg child process. Encoders write intermediate MPEG-TS
// segments; finalize concatenates the segments and muxes the audio track into
// the final MP4. Hardware encoding falls back to software at most once,
// resuming from the first frame the hardware path failed to accept.
package encode
