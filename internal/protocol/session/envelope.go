package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	EnvelopeTypeRequest  = "viewer.request"
	EnvelopeTypeResponse = "viewer.response"
	EnvelopeTypeNotice   = "viewer.notice"

	AckStatusAccepted = "accepted"
	AckStatusRejected = "rejected"

	NoticeReadyState     = "ready-state"
	NoticeLevelUpdate    = "level-update"
	NoticeDocumentLoaded = "document-loaded"
)

var (
	ErrInvalidRequest      = errors.New("session: invalid request")
	ErrInvalidResponse     = errors.New("session: invalid response")
	ErrInvalidNotice       = errors.New("session: invalid notice")
	ErrUnknownEnvelopeType = errors.New("session: unknown envelope type")
	ErrEnvelopeTooLarge    = errors.New("session: envelope too large")
)

// RequestEnv is the host->viewer command submission shape.
type RequestEnv struct {
	CorrelationID string          `json:"correlation_id"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

func (e RequestEnv) Validate() error {
	if strings.TrimSpace(e.CorrelationID) == "" {
		return fmt.Errorf("%w: missing correlation_id", ErrInvalidRequest)
	}
	if strings.TrimSpace(e.Action) == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidRequest)
	}
	return nil
}

// ResponseEnv is the viewer->host acknowledgment for one request,
// matched by correlation_id.
type ResponseEnv struct {
	CorrelationID string          `json:"correlation_id"`
	Status        string          `json:"status"`
	Code          uint32          `json:"code"`
	Message       string          `json:"message"`
	Result        json.RawMessage `json:"result,omitempty"`
	TimestampMS   uint64          `json:"timestamp_ms"`
}

func (e ResponseEnv) Validate() error {
	if strings.TrimSpace(e.CorrelationID) == "" {
		return fmt.Errorf("%w: missing correlation_id", ErrInvalidResponse)
	}
	status := strings.TrimSpace(e.Status)
	if status != AckStatusAccepted && status != AckStatusRejected {
		return fmt.Errorf("%w: invalid status", ErrInvalidResponse)
	}
	if e.TimestampMS == 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidResponse)
	}
	return nil
}

// NoticeEnv is the viewer->host readiness signal shape. Ready and Level
// are meaningful for ready-state; Level alone for level-update.
type NoticeEnv struct {
	Kind        string `json:"kind"`
	Ready       bool   `json:"ready,omitempty"`
	Level       int    `json:"level,omitempty"`
	TimestampMS uint64 `json:"timestamp_ms"`
}

func (e NoticeEnv) Validate() error {
	switch strings.TrimSpace(e.Kind) {
	case NoticeReadyState, NoticeLevelUpdate, NoticeDocumentLoaded:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNotice, e.Kind)
	}
	if e.Level < 0 {
		return fmt.Errorf("%w: negative level", ErrInvalidNotice)
	}
	if e.TimestampMS == 0 {
		return fmt.Errorf("%w: missing timestamp_ms", ErrInvalidNotice)
	}
	return nil
}

// Envelope is the newline-delimited JSON frame carried on the wire.
// Exactly one of Request, Response, Notice is set, selected by Type.
type Envelope struct {
	Type     string       `json:"type"`
	Request  *RequestEnv  `json:"request,omitempty"`
	Response *ResponseEnv `json:"response,omitempty"`
	Notice   *NoticeEnv   `json:"notice,omitempty"`
}

func WriteRequest(w io.Writer, req RequestEnv) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return writeEnvelope(w, Envelope{
		Type:    EnvelopeTypeRequest,
		Request: &req,
	})
}

func WriteResponse(w io.Writer, resp ResponseEnv) error {
	if err := resp.Validate(); err != nil {
		return err
	}
	return writeEnvelope(w, Envelope{
		Type:     EnvelopeTypeResponse,
		Response: &resp,
	})
}

func WriteNotice(w io.Writer, notice NoticeEnv) error {
	if err := notice.Validate(); err != nil {
		return err
	}
	return writeEnvelope(w, Envelope{
		Type:   EnvelopeTypeNotice,
		Notice: &notice,
	})
}

// ReadEnvelope reads and validates one envelope of any type.
func ReadEnvelope(r *bufio.Reader) (Envelope, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return Envelope{}, err
	}
	if len(line) > 128*1024 {
		return Envelope{}, ErrEnvelopeTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, err
	}
	switch env.Type {
	case EnvelopeTypeRequest:
		if env.Request == nil {
			return Envelope{}, fmt.Errorf("%w: missing request body", ErrInvalidRequest)
		}
		if err := env.Request.Validate(); err != nil {
			return Envelope{}, err
		}
	case EnvelopeTypeResponse:
		if env.Response == nil {
			return Envelope{}, fmt.Errorf("%w: missing response body", ErrInvalidResponse)
		}
		if err := env.Response.Validate(); err != nil {
			return Envelope{}, err
		}
	case EnvelopeTypeNotice:
		if env.Notice == nil {
			return Envelope{}, fmt.Errorf("%w: missing notice body", ErrInvalidNotice)
		}
		if err := env.Notice.Validate(); err != nil {
			return Envelope{}, err
		}
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEnvelopeType, env.Type)
	}
	return env, nil
}

// ReadRequest reads one envelope and requires it to be a request.
func ReadRequest(r *bufio.Reader) (RequestEnv, error) {
	env, err := ReadEnvelope(r)
	if err != nil {
		return RequestEnv{}, err
	}
	if env.Type != EnvelopeTypeRequest || env.Request == nil {
		return RequestEnv{}, fmt.Errorf("%w: unexpected envelope type", ErrInvalidRequest)
	}
	return *env.Request, nil
}

func writeEnvelope(w io.Writer, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}
