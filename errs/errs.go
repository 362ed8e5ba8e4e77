// Package errs defines the single structured error type surfaced to users.
//
// Every failure the application reports carries a machine-readable Kind, a short
// human description and a flat map of context values (string, int or bool) that is
// both interpolated into the message and written to the log as fields.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the machine-readable description key of an error.
type Kind string

const (
	KindUnknown            Kind = "unknown"
	KindGeneric            Kind = "generic"
	KindNoSourceFound      Kind = "no_source_found"
	KindUserNotAuthorized  Kind = "user_not_authorized"
	KindMissingCredentials Kind = "missing_credentials"
	KindDownloadError      Kind = "download_error"
	KindFailedCombining    Kind = "failed_combining"
	KindMissingEncoder     Kind = "missing_encoder"
	KindMissingDependency  Kind = "missing_dependency"
	KindConfigNotFound     Kind = "config_not_found"
	KindDataNotPresent     Kind = "data_not_present"
	KindNoFilesFound       Kind = "no_files_found"
	KindRequestError       Kind = "request_error"
	KindCloudflareBlocked  Kind = "cloudflare_blocked"
	KindBookNotFound       Kind = "book_not_found"
	KindBookNotReleased    Kind = "book_not_released"
	KindBookHasNoAudiobook Kind = "book_has_no_audiobook"
	KindMissingBookAccess  Kind = "missing_book_access"
	KindProcessFailed      Kind = "process_failed"
	KindUnsupportedAuth    Kind = "unsupported_auth"
	KindTemplate           Kind = "template_error"
)

// messages are the per-kind templates; {name} is replaced by Data["name"].
var messages = map[Kind]string{
	KindUnknown:            "something went wrong",
	KindGeneric:            "{cause}",
	KindNoSourceFound:      "no source found for {url}",
	KindUserNotAuthorized:  "failed to login: {reason}",
	KindMissingCredentials: "login requires both a username and a password",
	KindDownloadError:      "download of {url} failed: expected {field} {expected}, got {actual}",
	KindFailedCombining:    "failed to combine files into {path}",
	KindMissingEncoder:     "ffmpeg encoder '{encoder}' not found, install ffmpeg with support for it or use another encoder (aac, aac_at, libfdk_aac)",
	KindMissingDependency:  "required program '{program}' was not found on PATH",
	KindConfigNotFound:     "config file {path} does not exist",
	KindDataNotPresent:     "the service did not return {what}",
	KindNoFilesFound:       "no audio files found for {title}",
	KindRequestError:       "request to {url} failed with status {status}",
	KindCloudflareBlocked:  "the request was blocked by Cloudflare, try again later or from another network",
	KindBookNotFound:       "could not find book {id}",
	KindBookNotReleased:    "book {id} has not been released yet",
	KindBookHasNoAudiobook: "book {id} has no audiobook version",
	KindMissingBookAccess:  "your account does not give access to book {id}",
	KindProcessFailed:      "{program} exited with code {code}: {stderr}",
	KindUnsupportedAuth:    "{source} does not support {method} authentication",
	KindTemplate:           "invalid output template: {reason}",
}

// Error is the structured application error.
type Error struct {
	Kind Kind
	Data map[string]any
	Err  error
}

// New creates an error of the given kind with empty context.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Data: make(map[string]any)}
}

// With records a context value. Only string, int and bool values are accepted.
func (e *Error) With(name string, value any) *Error {
	switch value.(type) {
	case string, int, bool:
	default:
		panic(fmt.Sprintf("errs: unsupported data type %T for %q", value, name))
	}

	e.Data[name] = value
	return e
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	tmpl, ok := messages[e.Kind]
	if !ok {
		tmpl = messages[KindUnknown]
	}

	pairs := make([]string, 0, len(e.Data)*2)
	for k, v := range e.Data {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	msg := strings.NewReplacer(pairs...).Replace(tmpl)

	if e.Err != nil && e.Kind != KindGeneric {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fields returns the context data together with the kind, ready for structured logging.
func (e *Error) Fields() map[string]any {
	fields := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		fields[k] = v
	}
	fields["kind"] = string(e.Kind)
	return fields
}

// Keys returns the sorted names of the recorded context values.
func (e *Error) Keys() []string {
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KindOf reports the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err's tree contains an *Error of the given kind.
// Joined errors are searched as well.
func Is(err error, kind Kind) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		return x.Kind == kind || Is(x.Err, kind)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if Is(e, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Is(x.Unwrap(), kind)
	default:
		return false
	}
}

// As converts any error into an *Error, wrapping foreign errors into the generic kind.
func As(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(KindGeneric).With("cause", err.Error()).Wrap(err)
}
