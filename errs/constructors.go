package errs

import "strings"

func NoSourceFound(url string) *Error {
	return New(KindNoSourceFound).With("url", url)
}

func UserNotAuthorized(reason string) *Error {
	return New(KindUserNotAuthorized).With("reason", reason)
}

func MissingCredentials() *Error {
	return New(KindMissingCredentials)
}

// DownloadStatus reports an unexpected HTTP status for a file transfer.
func DownloadStatus(url string, expected, actual int) *Error {
	return New(KindDownloadError).
		With("url", url).
		With("field", "status code").
		With("expected", expected).
		With("actual", actual)
}

// DownloadContentType reports an unexpected Content-Type for a file transfer.
func DownloadContentType(url, expected, actual string) *Error {
	return New(KindDownloadError).
		With("url", url).
		With("field", "content type").
		With("expected", expected).
		With("actual", actual)
}

func FailedCombining(path string) *Error {
	return New(KindFailedCombining).With("path", path)
}

func MissingEncoder(encoder string) *Error {
	return New(KindMissingEncoder).With("encoder", encoder)
}

func MissingDependency(program string) *Error {
	return New(KindMissingDependency).With("program", program)
}

func ConfigNotFound(path string) *Error {
	return New(KindConfigNotFound).With("path", path)
}

func DataNotPresent(what string) *Error {
	return New(KindDataNotPresent).With("what", what)
}

func NoFilesFound(title string) *Error {
	return New(KindNoFilesFound).With("title", title)
}

func RequestError(url string, status int) *Error {
	return New(KindRequestError).With("url", url).With("status", status)
}

func CloudflareBlocked() *Error {
	return New(KindCloudflareBlocked)
}

func BookNotFound(id string) *Error {
	return New(KindBookNotFound).With("id", id)
}

func BookNotReleased(id string) *Error {
	return New(KindBookNotReleased).With("id", id)
}

func BookHasNoAudiobook(id string) *Error {
	return New(KindBookHasNoAudiobook).With("id", id)
}

func MissingBookAccess(id string) *Error {
	return New(KindMissingBookAccess).With("id", id)
}

func UnsupportedAuth(source, method string) *Error {
	return New(KindUnsupportedAuth).With("source", source).With("method", method)
}

func Template(reason string) *Error {
	return New(KindTemplate).With("reason", reason)
}

// ProcessFailed reports a non-zero exit of an external program.
// Only the last lines of stderr are kept.
func ProcessFailed(program string, code int, stderr string) *Error {
	return New(KindProcessFailed).
		With("program", program).
		With("code", code).
		With("stderr", tail(stderr, 5))
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimSpace(s), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, " | ")
}

// Generic reports a failure that has no dedicated kind.
func Generic(cause string) *Error {
	return New(KindGeneric).With("cause", cause)
}
