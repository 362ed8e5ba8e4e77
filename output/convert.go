package output

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/ffmpeg"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/log"
	"github.com/audiobook-dl/audiobook-dl/util"
	"github.com/samber/lo"
)

// DefaultEncoder is used for MP4 family outputs when no encoder is configured.
const DefaultEncoder = "aac"

// CanCopyCodec reports whether audio in format in can be remuxed into out unchanged.
func CanCopyCodec(in, out string) bool {
	return out == "mkv" || out == "mka" || (in == "ts" && out == "mp3")
}

// Convert transcodes paths to format and returns the new paths in the same order.
// Files already in format are returned untouched; if all of them are, ffmpeg is never invoked.
// Converted sources are removed once every conversion succeeded. When one fails,
// the targets produced so far are removed and the sources are left in place.
func Convert(ctx context.Context, runner ffmpeg.Runner, paths []string, format, encoder string, onProgress ProgressFunc) ([]string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		return paths, nil
	}

	pending := lo.Filter(paths, func(p string, _ int) bool {
		return !strings.EqualFold(util.Ext(p), format)
	})
	if len(pending) == 0 {
		return paths, nil
	}

	reencode := lo.Contains(constant.Mp4Formats, format) && lo.SomeBy(pending, func(p string) bool {
		return !CanCopyCodec(strings.ToLower(util.Ext(p)), format)
	})
	if encoder == "" {
		encoder = DefaultEncoder
	}
	if reencode {
		list, err := runner.Encoders(ctx)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(list, encoder) {
			return nil, errs.MissingEncoder(encoder)
		}
	}

	probes := make(map[string]ffmpeg.Probe, len(pending))
	var total float64
	if reencode || (onProgress != nil && len(pending) > 1) {
		for _, p := range pending {
			probe, err := runner.Probe(ctx, p)
			if err != nil {
				log.Warnf("probing %s: %s", p, err)
				continue
			}
			probes[p] = probe
			total += probe.Duration
		}
	}

	var (
		result   = make([]string, len(paths))
		produced []string
		done     float64
		index    int
	)
	for i, old := range paths {
		in := strings.ToLower(util.Ext(old))
		if in == format {
			result[i] = old
			continue
		}

		target := util.ReplaceExt(old, format)
		args := convertArgs(old, target, in, format, encoder, probes[old])

		index++
		log.Debugf("converting %s to %s (%d/%d)", old, format, index, len(pending))

		duration := probes[old].Duration
		produced = append(produced, target)
		err := runner.Run(ctx, args, func(seconds float64) {
			if onProgress == nil {
				return
			}
			if total > 0 {
				onProgress(util.Min((done+util.Min(seconds, duration))/total, 1))
			} else {
				onProgress(float64(index-1) / float64(len(pending)))
			}
		})
		if err != nil {
			discard(produced)
			return nil, err
		}
		done += duration
		result[i] = target
	}

	// Sources go only once every target exists.
	for _, old := range pending {
		if err := filesystem.API().Remove(old); err != nil {
			log.Warnf("remove converted source %s: %s", old, err)
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return result, nil
}

// discard removes the targets of an aborted conversion, the half-written one included.
func discard(targets []string) {
	for _, t := range targets {
		if err := filesystem.API().Remove(t); err != nil && !os.IsNotExist(err) {
			log.Warnf("remove %s: %s", t, err)
		}
	}
}

func convertArgs(old, target, in, format, encoder string, probe ffmpeg.Probe) []string {
	switch {
	case CanCopyCodec(in, format):
		return []string{"-y", "-i", old, "-codec", "copy", target}
	case lo.Contains(constant.Mp4Formats, format):
		if probe.BitRateKbps > 0 {
			bitrate := fmt.Sprintf("%dk", probe.BitRateKbps)
			return []string{"-y", "-i", old, "-c:a", encoder, "-b:a", bitrate, target}
		}
		return []string{"-y", "-i", old, "-c:a", encoder, target}
	default:
		return []string{"-y", "-i", old, target}
	}
}
