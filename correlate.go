package depositflow

import (
	"context"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow/process"
)

// Correlate publishes a message from outside the engine. It is
// delivered to the single instance waiting for it, scoped by business
// key and, when both sides carry one, correlation ID. A message no
// instance is waiting for starts the definition subscribed to it, if
// any.
//
// Publishing the same message again after it has been consumed returns
// ErrNoMatchingCorrelation; delivery is not repeated.
func (e *Engine) Correlate(
	ctx context.Context,
	message string,
	businessKey string,
	correlationID string,
	vars process.Variables,
) error {
	e.m.Lock()
	defer e.m.Unlock()

	logging.Debug(
		e.logger,
		"correlating %q (business key %q)",
		message,
		businessKey,
	)

	if err := e.publish(message, businessKey, correlationID, vars.Clone()); err != nil {
		return err
	}

	return e.pump(ctx)
}

// Broadcast publishes a signal from outside the engine, starting an
// instance of every definition subscribed to it.
func (e *Engine) Broadcast(
	ctx context.Context,
	signal string,
	businessKey string,
	vars process.Variables,
) error {
	e.m.Lock()
	defer e.m.Unlock()

	if err := e.broadcast(signal, businessKey, "", vars.Clone()); err != nil {
		return err
	}

	return e.pump(ctx)
}
