// package audio handles PCM buffers: WAV encoding and decoding, trimming, resampling,
// ffmpeg conversion and chroma-based chord detection.
//
// Samples are planar float32 in [-1, 1], one slice per channel.
package audio
