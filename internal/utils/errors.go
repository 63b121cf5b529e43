package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeTimeout         Code = "TIMEOUT"
	CodeFailedPrecond   Code = "FAILED_PRECONDITION"
	CodeResourceBusy    Code = "RESOURCE_EXHAUSTED"
	CodeInternal        Code = "INTERNAL"
)

// Kind names the failure class reported to realtime clients.
type Kind string

const (
	KindMissingInput        Kind = "MissingInputError"
	KindInvalidInput        Kind = "InvalidInputError"
	KindTranscode           Kind = "TranscodeError"
	KindConfiguration       Kind = "ConfigurationError"
	KindTranscription       Kind = "TranscriptionError"
	KindReplyGeneration     Kind = "ReplyGenerationError"
	KindSpeechSynthesis     Kind = "SpeechSynthesisError"
	KindRender              Kind = "RenderError"
	KindRenderTimeout       Kind = "RenderTimeoutError"
	KindRenderOutputMissing Kind = "RenderOutputMissingError"
	KindDelivery            Kind = "DeliveryError"
	KindBusy                Kind = "BusyError"
	KindInternal            Kind = "InternalError"
)

// AppError is the unified error contract across layers.
type AppError struct {
	Code    Code
	Kind    Kind
	Op      string // operation name, ex: "AvatarPipeline.Run"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// K builds a pipeline error of the given kind. The HTTP code is derived from the kind.
func K(kind Kind, op, msg string, err error) error {
	return &AppError{Code: codeForKind(kind), Kind: kind, Op: op, Message: msg, Err: err}
}

func codeForKind(kind Kind) Code {
	switch kind {
	case KindMissingInput, KindInvalidInput:
		return CodeInvalidArgument
	case KindConfiguration:
		return CodeFailedPrecond
	case KindTranscription, KindReplyGeneration, KindSpeechSynthesis, KindDelivery:
		return CodeUnavailable
	case KindRenderTimeout:
		return CodeTimeout
	case KindBusy:
		return CodeResourceBusy
	default:
		return CodeInternal
	}
}

// KindOf returns the kind of the outermost AppError carrying one, or KindInternal.
func KindOf(err error) Kind {
	for err != nil {
		var ae *AppError
		if !errors.As(err, &ae) {
			break
		}
		if ae.Kind != "" {
			return ae.Kind
		}
		err = ae.Err
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// ClientMessage renders "<Kind>: <message>" for realtime clients. Operation
// names are internal and stay out of it, including those of wrapped AppErrors.
func ClientMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := clientDetail(err)
	if msg == "" {
		msg = "error"
	}
	return fmt.Sprintf("%s: %s", KindOf(err), msg)
}

func clientDetail(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Message
	if ae.Err != nil {
		if cause := clientDetail(ae.Err); cause != "" {
			if msg != "" {
				msg += ": "
			}
			msg += cause
		}
	}
	return msg
}

func HTTPStatus(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		switch ae.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeFailedPrecond:
			return http.StatusPreconditionFailed
		case CodeResourceBusy:
			return http.StatusTooManyRequests
		case CodeUnavailable:
			return http.StatusServiceUnavailable
		case CodeTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusInternalServerError
		}
	}
	// fallback
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Backward-compatible sentinel errors
var (
	ErrNotFound = errors.New("not found")
)
