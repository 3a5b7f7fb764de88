package recognizer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recognizer failures.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorNetworkTimeout
	ErrorNetwork
	ErrorAudio
	ErrorServer
	ErrorClient
	ErrorSpeechTimeout
	ErrorNoMatch
	ErrorRecognizerBusy
)

// String returns the metric label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNetworkTimeout:
		return "network_timeout"
	case ErrorNetwork:
		return "network"
	case ErrorAudio:
		return "audio"
	case ErrorServer:
		return "server"
	case ErrorClient:
		return "client"
	case ErrorSpeechTimeout:
		return "speech_timeout"
	case ErrorNoMatch:
		return "no_match"
	case ErrorRecognizerBusy:
		return "recognizer_busy"
	default:
		return "unknown"
	}
}

// Message returns the user-facing notification text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorNetworkTimeout:
		return "Network timeout"
	case ErrorNetwork:
		return "Network error"
	case ErrorAudio:
		return "Audio error"
	case ErrorServer:
		return "Server error"
	case ErrorClient:
		return "Client error"
	case ErrorSpeechTimeout:
		return "No speech input"
	case ErrorNoMatch:
		return "No match found"
	case ErrorRecognizerBusy:
		return "Recognizer is busy"
	default:
		return "Unknown error occurred"
	}
}

// Error is a classified recognizer failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognizer error: %s", e.Kind)
	}
	return fmt.Sprintf("recognizer error: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or ErrorUnknown if err is not a *Error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ErrorUnknown
}
