package constant

// External media tool binaries resolved from PATH.
const (
	FFmpeg  = "ffmpeg"
	FFprobe = "ffprobe"
)

// Mp4Formats lists the output extensions that live in an MP4 container and need an AAC-family encoder.
var Mp4Formats = []string{"mp4", "m4a", "m4b", "m4r", "m4v", "m4p"}

// Placeholder is the value substituted for metadata fields that are not present.
const Placeholder = "NA"
