// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Output Assembly - these keys control where finished audiobooks land and what shape they take.
const (
	OutputTemplate    = "output_template"
	OutputFormat      = "output_format"
	Combine           = "combine"
	RemoveChars       = "remove_chars"
	NoChapters        = "no_chapters"
	WriteJSONMetadata = "write_json_metadata"
	Mp4AudioEncoder   = "mp4_audio_encoder"
)

// Download Behaviour - these keys tune the segment transfer pool.
const (
	SkipDownloaded   = "skip_downloaded"
	DownloadWorkers  = "download.workers"
	DownloadRetries  = "download.retries"
	DownloadProgress = "download.progress"
)

// Persistence - these keys locate the per-source document store.
const (
	DatabaseDirectory = "database_directory"
)

// Sources - per-service credential tables live under this prefix.
const (
	Sources = "sources"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
