package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
)

// HeaderRequestID carries the id of a request across the portal and the API.
const HeaderRequestID = "X-Request-ID"

// Error is a non-2xx (or `success: false`) answer of the portal API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portal api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("portal api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the school portal API.
type Client struct {
	http *resty.Client
}

// NewClient returns a Client configured from conf.API.
func NewClient(conf *core.Config, logger core.Logger) *Client {
	return New(conf.API.BaseURL, conf.API.Timeout, logger, conf.Debug)
}

func New(baseURL string, timeout time.Duration, logger core.Logger, debug bool) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetDebug(debug).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if req.Header.Get(HeaderRequestID) == "" {
				req.SetHeader(HeaderRequestID, RequestIDFrom(req.Context()))
			}
			return nil
		})
	if logger != nil {
		rc.SetLogger(restyLogger{logger})
	}
	return &Client{http: rc}
}

type requestIDKey struct{}

// WithRequestID makes requests issued with ctx carry id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id carried by ctx, or a new one.
func RequestIDFrom(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// envelope is the common shape of the messaging endpoints' answers.
type envelope struct {
	Success       *bool               `json:"success"`
	Error         string              `json:"error"`
	Message       json.RawMessage     `json:"message"` // the sent message, or an error message
	Conversations []chat.Conversation `json:"conversations"`
	Messages      []chat.Message      `json:"messages"`
}

func (env envelope) errorMessage() string {
	if env.Error != "" {
		return env.Error
	}
	var msg string
	if len(env.Message) > 0 && json.Unmarshal(env.Message, &msg) == nil {
		return msg
	}
	return ""
}

// decode checks the status of resp and unmarshals its body into out.
func decode(resp *resty.Response, out interface{}) error {
	if resp.IsError() {
		apiErr := &Error{StatusCode: resp.StatusCode()}
		var env envelope
		if json.Unmarshal(resp.Body(), &env) == nil {
			apiErr.Message = env.errorMessage()
		}
		return apiErr
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// decodeEnvelope is decode for the messaging endpoints: `success: false` is an error too.
func decodeEnvelope(resp *resty.Response) (envelope, error) {
	var env envelope
	if err := decode(resp, &env); err != nil {
		return envelope{}, err
	}
	if env.Success != nil && !*env.Success {
		msg := env.errorMessage()
		if msg == "" {
			msg = "request failed"
		}
		return envelope{}, &Error{StatusCode: resp.StatusCode(), Message: msg}
	}
	return env, nil
}

type restyLogger struct {
	logger core.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
