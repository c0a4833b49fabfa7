// Package monitor reports errors and panics to sentry.
package monitor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/intrntsrfr/cosmos/failure"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// Credentials is the subset of the raw sentry map cosmos understands.
type Credentials struct {
	Dsn              string  `mapstructure:"dsn"`
	Release          string  `mapstructure:"release"`
	Environment      string  `mapstructure:"environment"`
	ServerName       string  `mapstructure:"server_name"`
	Debug            bool    `mapstructure:"debug"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// Handler is the exception handler. Until Init succeeds every method is a
// no-op apart from logging.
type Handler struct {
	log     *zap.Logger
	hub     *sentry.Hub
	enabled atomic.Bool
}

func New(log *zap.Logger) (*Handler, error) {
	if log == nil {
		return nil, fmt.Errorf("monitor: logger is required")
	}
	return &Handler{log: log.Named("monitor")}, nil
}

// Init decodes raw into sentry client options and enables reporting. An
// empty DSN leaves monitoring disabled without error. A DSN that does not
// parse returns a failure.BadCredential.
func (h *Handler) Init(raw map[string]any) error {
	var creds Credentials
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &creds,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return failure.Wrap(failure.BadCredential, err, "malformed sentry credentials")
	}

	if creds.Dsn == "" {
		h.log.Info("no sentry DSN configured, monitoring disabled")
		return nil
	}
	if _, err := sentry.NewDsn(creds.Dsn); err != nil {
		return failure.Wrap(failure.BadCredential, err, "invalid sentry DSN provided")
	}

	if creds.SampleRate == 0 {
		creds.SampleRate = 1
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              creds.Dsn,
		Release:          creds.Release,
		Environment:      creds.Environment,
		ServerName:       creds.ServerName,
		Debug:            creds.Debug,
		SampleRate:       creds.SampleRate,
		TracesSampleRate: creds.TracesSampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("creating sentry client: %w", err)
	}
	h.hub = sentry.NewHub(client, sentry.NewScope())
	h.enabled.Store(true)
	h.log.Info("sentry initialised", zap.String("release", creds.Release), zap.String("environment", creds.Environment))
	return nil
}

func (h *Handler) Enabled() bool {
	return h.enabled.Load()
}

// Capture logs err and, when enabled, forwards it to sentry with tags.
func (h *Handler) Capture(err error, tags map[string]string) {
	if err == nil {
		return
	}
	h.log.Error("captured error", zap.Error(err), zap.Any("tags", tags))
	if !h.Enabled() {
		return
	}
	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		h.hub.CaptureException(err)
	})
}

// Recover is deferred by event handlers so a panicking command does not
// take the process down.
func (h *Handler) Recover() {
	r := recover()
	if r == nil {
		return
	}
	h.log.Error("recovered from panic", zap.Any("panic", r), zap.Stack("stack"))
	if h.Enabled() {
		h.hub.Recover(r)
	}
}

// Flush waits for queued events to be sent.
func (h *Handler) Flush(timeout time.Duration) bool {
	if !h.Enabled() {
		return true
	}
	return h.hub.Flush(timeout)
}
