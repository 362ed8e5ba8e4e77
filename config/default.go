package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/color"
	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/style"
	"github.com/spf13/viper"
)

// Field describes a configuration key and its default value.
type Field struct {
	Key         string
	Value       any
	Description string
	// Flag is the download flag overriding the key, if any.
	Flag string
}

// Env is the environment variable bound to the key, e.g. AUDIOBOOK_DL_DOWNLOAD_WORKERS.
func (f *Field) Env() string {
	return EnvPrefix() + "_" + strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
}

// Pretty renders the field with its current value for terminal output.
func (f *Field) Pretty() string {
	label := style.Fg(color.Blue)
	rows := []string{
		style.Faint(f.Description),
		label("Key:     ") + style.Fg(color.Purple)(f.Key),
		label("Env:     ") + f.Env(),
	}
	if f.Flag != "" {
		rows = append(rows, label("Flag:    ")+"--"+f.Flag)
	}
	rows = append(rows,
		label("Value:   ")+highlight(viper.Get(f.Key)),
		label("Default: ")+highlight(f.Value),
		label("Type:    ")+fmt.Sprintf("%T", f.Value),
	)
	return strings.Join(rows, "\n")
}

func highlight(v any) string {
	switch value := v.(type) {
	case bool:
		if value {
			return style.Fg(color.Green)("true")
		}
		return style.Fg(color.Red)("false")
	case string:
		return style.Fg(color.Yellow)(strconv.Quote(value))
	default:
		return fmt.Sprint(value)
	}
}

func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Env         string `json:"env"`
		Flag        string `json:"flag,omitempty"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Env:         f.Env(),
		Flag:        f.Flag,
	})
}

// Default holds every known configuration field by key.
var Default = make(map[string]Field)

// EnvExposed lists the keys bound to environment variables.
var EnvExposed []string

// EnvPrefix is the upper-cased application prefix shared by every bound environment variable.
func EnvPrefix() string {
	return strings.ToUpper(strings.ReplaceAll(constant.App, "-", "_"))
}

func register(f Field) {
	if _, exists := Default[f.Key]; exists {
		panic("duplicate config key: " + f.Key)
	}
	Default[f.Key] = f
	EnvExposed = append(EnvExposed, f.Key)
}

func init() {
	for _, f := range []Field{
		{key.OutputTemplate, "{author}/{title}", "Output location template.\nAvailable fields: title, author, authors, narrator, narrators, series, series_order,\nalbum, artist, genre, language, publisher, isbn, year, release_date", "output"},
		{key.OutputFormat, "", "Convert the finished audiobook to this extension (e.g. mp3, m4b).\nEmpty keeps the source format", "output-format"},
		{key.Combine, false, "Combine all downloaded files into a single file", "combine"},
		{key.SkipDownloaded, false, "Skip books that were already downloaded", "skip-downloaded"},
		{key.RemoveChars, "", "Characters removed from every metadata value used in the output path", "remove-chars"},
		{key.NoChapters, false, "Do not embed chapter marks", "no-chapters"},
		{key.WriteJSONMetadata, false, "Write a JSON metadata sidecar next to the output", "write-json-metadata"},
		{key.Mp4AudioEncoder, "aac", "FFmpeg encoder used for mp4 family output formats (aac, aac_at, libfdk_aac)", "mp4-audio-encoder"},
		{key.DatabaseDirectory, "", "Directory for per-source book documents.\nEmpty uses the default data directory", "database-directory"},
		{key.DownloadWorkers, 4, "Number of files downloaded concurrently", "workers"},
		{key.DownloadRetries, 3, "Number of retries for a failed transfer", ""},
		{key.DownloadProgress, true, "Render download and ffmpeg progress bars", ""},
		{key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)", "icons"},
		{key.LogsWrite, false, "Write logs", ""},
		{key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace", ""},
		{key.LogsJson, false, "Use json format for logs", ""},
		{key.CliColored, true, "Enable colored CLI output", ""},
		{key.CliVersionCheck, true, "Enable automatic version check", ""},
	} {
		register(f)
	}
}
