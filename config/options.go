package config

import (
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/spf13/viper"
)

// Options is an immutable snapshot of the settings a download run needs.
// It is built once at the command boundary and passed down explicitly.
type Options struct {
	OutputTemplate    string
	OutputFormat      string
	Combine           bool
	SkipDownloaded    bool
	RemoveChars       string
	NoChapters        bool
	WriteJSONMetadata bool
	Mp4AudioEncoder   string
	DatabaseDirectory string
	Workers           int
	Retries           int
	Progress          bool
}

// Snapshot reads the current configuration into an Options value.
func Snapshot() Options {
	opts := Options{
		OutputTemplate:    viper.GetString(key.OutputTemplate),
		OutputFormat:      viper.GetString(key.OutputFormat),
		Combine:           viper.GetBool(key.Combine),
		SkipDownloaded:    viper.GetBool(key.SkipDownloaded),
		RemoveChars:       viper.GetString(key.RemoveChars),
		NoChapters:        viper.GetBool(key.NoChapters),
		WriteJSONMetadata: viper.GetBool(key.WriteJSONMetadata),
		Mp4AudioEncoder:   viper.GetString(key.Mp4AudioEncoder),
		DatabaseDirectory: viper.GetString(key.DatabaseDirectory),
		Workers:           viper.GetInt(key.DownloadWorkers),
		Retries:           viper.GetInt(key.DownloadRetries),
		Progress:          viper.GetBool(key.DownloadProgress),
	}

	if opts.DatabaseDirectory == "" {
		opts.DatabaseDirectory = where.Database()
	}
	if opts.Mp4AudioEncoder == "" {
		opts.Mp4AudioEncoder = "aac"
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return opts
}
