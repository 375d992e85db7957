// Package device is the adapter over the access-control terminal's ISAPI surface.
//
// Every response-shape quirk of the firmware (success signalled by statusCode or by
// statusString, single results returned as an object instead of an array, XML on some
// endpoints) is resolved here; callers only see typed results, *Error or ErrUnreachable.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Credentials authentication scheme applied to the underlying HTTP client.
type Credentials interface {
	Apply(c *resty.Client)
}

// DigestAuth HTTP digest, what the terminals ship with.
type DigestAuth struct {
	User     string
	Password string
}

func (a DigestAuth) Apply(c *resty.Client) { c.SetDigestAuth(a.User, a.Password) }

// BasicAuth for firmware with digest disabled.
type BasicAuth struct {
	User     string
	Password string
}

func (a BasicAuth) Apply(c *resty.Client) { c.SetBasicAuth(a.User, a.Password) }

// Observer receives one call per device request; outcome is ok, rejected or unreachable.
type Observer interface {
	ObserveDeviceCall(op, outcome string, elapsed time.Duration)
}

// Options client construction parameters.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials Credentials
	// face library the terminal stores enrolled faces in
	FDID        string
	FaceLibType string
	Observer    Observer
}

// Client ISAPI client. Safe for concurrent use; the terminal itself is not, which is why
// reconciliation drives it one call at a time.
type Client struct {
	http        *resty.Client
	logger      *zap.Logger
	observer    Observer
	fdid        string
	faceLibType string
	newSearchID func() string
}

// NewClient creates a device client. Requests are never retried by the transport: a
// failed item is reported and the caller decides.
func NewClient(opts Options, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json, application/xml")
	if opts.Credentials != nil {
		opts.Credentials.Apply(httpClient)
	}

	fdid := opts.FDID
	if fdid == "" {
		fdid = "1"
	}
	libType := opts.FaceLibType
	if libType == "" {
		libType = "blackFD"
	}

	return &Client{
		http:        httpClient,
		logger:      logger.Named("device").With(zap.String("base_url", opts.BaseURL)),
		observer:    opts.Observer,
		fdid:        fdid,
		faceLibType: libType,
		newSearchID: uuid.NewString,
	}
}

type request struct {
	op     string
	method string
	path   string
	body   any
	xml    bool
}

// exchange performs the HTTP round trip. Only transport failures are errors here; any
// answer from the terminal is returned with its HTTP status for the caller to judge.
func (c *Client) exchange(ctx context.Context, req request) ([]byte, int, error) {
	start := time.Now()

	r := c.http.R().SetContext(ctx)
	if req.body != nil {
		if req.xml {
			r.SetHeader("Content-Type", "application/xml")
		} else {
			r.SetHeader("Content-Type", "application/json")
		}
		r.SetBody(req.body)
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		c.observe(req.op, "unreachable", start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, fmt.Errorf("device %s: %w", req.op, ctxErr)
		}
		c.logger.Warn("Device request failed",
			zap.String("op", req.op),
			zap.String("path", req.path),
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("device %s: %w: %v", req.op, ErrUnreachable, err)
	}

	c.logger.Debug("Device request completed",
		zap.String("op", req.op),
		zap.Int("http_status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.Body(), resp.StatusCode(), nil
}

// command sends a request whose only result is a status block.
func (c *Client) command(ctx context.Context, req request) error {
	start := time.Now()
	body, httpStatus, err := c.exchange(ctx, req)
	if err != nil {
		return err
	}

	st, err := parseStatus(body)
	if err != nil || !st.OK() {
		c.observe(req.op, "rejected", start)
		return rejection(req.op, httpStatus, st)
	}
	c.observe(req.op, "ok", start)
	return nil
}

// query sends a search request and decodes the body into out. A body that carries a
// non-success status block is a rejection even when it also parses as a result.
func (c *Client) query(ctx context.Context, req request, decode func([]byte) error) error {
	start := time.Now()
	body, httpStatus, err := c.exchange(ctx, req)
	if err != nil {
		return err
	}

	st, _ := parseStatus(body)
	if (st.present() && !st.OK()) || httpStatus >= 400 {
		c.observe(req.op, "rejected", start)
		return rejection(req.op, httpStatus, st)
	}
	if err := decode(body); err != nil {
		c.observe(req.op, "rejected", start)
		return &Error{Op: req.op, HTTPStatus: httpStatus, ErrorMsg: "unreadable response: " + err.Error()}
	}
	c.observe(req.op, "ok", start)
	return nil
}

func (c *Client) observe(op, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveDeviceCall(op, outcome, time.Since(start))
	}
}

func rejection(op string, httpStatus int, st ResponseStatus) *Error {
	return &Error{
		Op:            op,
		HTTPStatus:    httpStatus,
		StatusCode:    st.StatusCode,
		StatusString:  st.StatusString,
		SubStatusCode: st.SubStatusCode,
		ErrorMsg:      st.ErrorMsg,
	}
}

// UpsertResult which path an upsert resolved through.
type UpsertResult int

const (
	Created UpsertResult = iota + 1
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// upsert tries create and, only when the terminal reports a duplicate, sends the same
// payload through update.
func (c *Client) upsert(ctx context.Context, create, update request) (UpsertResult, error) {
	err := c.command(ctx, create)
	if err == nil {
		return Created, nil
	}
	de, ok := AsError(err)
	if !ok || !de.IsDuplicate() {
		return 0, err
	}

	update.body = create.body
	if err := c.command(ctx, update); err != nil {
		return 0, err
	}
	return Updated, nil
}
