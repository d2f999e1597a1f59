package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hibor-causal/make-dataset/conf"

	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// Timer times a dataset run as one transaction with a segment per step.
// The CLI owns the Timer; the pipeline only sees it through the context:
//
//	ctx, done := metrics.NewParent(ctx, "make-dataset")
//	defer done()
//	stepDone := metrics.NewChild(ctx, constants.ReadingRawData)
type Timer interface {
	// new starts the run transaction and returns a context carrying it.
	new(parentCtx context.Context, name string) (ctx context.Context, close func())

	// newChild starts a step segment under the run found in parentCtx.
	newChild(parentCtx context.Context, name string) (close func())

	// Close flushes pending timings.
	Close()
}

type key int

const timerKey key = 0

// NewContext attaches t to ctx.
func NewContext(ctx context.Context, t Timer) context.Context {
	return context.WithValue(ctx, timerKey, t)
}

// NewParent starts timing a run.
func NewParent(ctx context.Context, name string) (context.Context, func()) {
	t := fromContext(ctx)
	return t.new(ctx, name)
}

// NewChild starts timing a step of the run in ctx.
func NewChild(ctx context.Context, name string) func() {
	t := fromContext(ctx)
	return t.newChild(ctx, name)
}

var defaultTimer = &noopTimer{}

// fromContext falls back to a no-op timer.
func fromContext(ctx context.Context) Timer {
	t, ok := ctx.Value(timerKey).(Timer)
	if !ok {
		return defaultTimer
	}
	return t
}

// GetTimer returns a New Relic backed timer when NEW_RELIC_LICENSE_KEY is set,
// otherwise a no-op timer.
func GetTimer(logger logrus.FieldLogger) Timer {
	license := conf.GetEnv("NEW_RELIC_LICENSE_KEY")
	if license == "" {
		logger.Debug("No New Relic license key. Using no-op timer.")
		return &noopTimer{}
	}

	target := conf.GetEnv("ENVIRONMENT")
	if target == "" {
		target = "local"
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(fmt.Sprintf("make-dataset-%s", target)),
		newrelic.ConfigLicense(license),
		newrelic.ConfigEnabled(true),
		newrelic.ConfigLogger(nrlogrus.StandardLogger()),
		func(cfg *newrelic.Config) {
			cfg.HighSecurity = true
		},
	)

	if err != nil {
		logger.Warnf("Failed to instantiate New Relic application. Default to no-op timer. %s", err.Error())
		return &noopTimer{}
	}

	timeout := time.Duration(connectionTimeoutSeconds()) * time.Second
	if err = app.WaitForConnection(timeout); err != nil {
		logger.Warnf("Failed to establish connection to New Relic server in %s. Default to no-op timer.", timeout)
		return &noopTimer{}
	}

	logger.Info("Using New Relic backed timer.")
	return &timer{nr: app, logger: logger}
}

func connectionTimeoutSeconds() int {
	if v, err := strconv.Atoi(conf.GetEnv("NEW_RELIC_CONNECTION_TIMEOUT_SECONDS")); err == nil && v > 0 {
		return v
	}
	return 30
}

var _ Timer = &timer{}

const shutdownTimeout = 30 * time.Second

type timer struct {
	nr     *newrelic.Application
	logger logrus.FieldLogger
}

func (t *timer) new(parentCtx context.Context, name string) (ctx context.Context, close func()) {
	txn := t.nr.StartTransaction(name)
	ctx = newrelic.NewContext(parentCtx, txn)

	f := func() {
		txn.End()
	}
	return ctx, f
}

func (t *timer) newChild(parentCtx context.Context, name string) (close func()) {
	txn := newrelic.FromContext(parentCtx)
	if txn == nil {
		t.logger.Warnf("No run transaction in context, step %q is not timed", name)
		return noop
	}
	segment := txn.StartSegment(name)

	return func() {
		segment.End()
	}
}

func (t *timer) Close() {
	t.nr.Shutdown(shutdownTimeout)
}

var _ Timer = &noopTimer{}

type noopTimer struct{}

func (t *noopTimer) new(parentCtx context.Context, name string) (ctx context.Context, close func()) {
	return parentCtx, noop
}

func (t *noopTimer) newChild(parentCtx context.Context, name string) (close func()) {
	return noop
}

func (t *noopTimer) Close() {}

func noop() {}
