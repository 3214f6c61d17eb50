package delivery

import (
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
)

// Outcome tags the result of a single delivery attempt.
type Outcome string

const (
	// OutcomeDelivered means the callback endpoint answered with a 2xx status.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed means the endpoint was unreachable, timed out, or answered
	// with a non-2xx status.
	OutcomeFailed Outcome = "failed"
	// OutcomeInactive means the subscription was deactivated and no request
	// was attempted.
	OutcomeInactive Outcome = "inactive"
)

// Result reports one delivery attempt. Err is nil exactly when the attempt
// was delivered.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Err        *pkgerrors.Error
}

// Delivered reports whether the attempt succeeded.
func (r Result) Delivered() bool {
	return r.Outcome == OutcomeDelivered
}

// ErrorMessage returns the failure message recorded on the event row, empty on
// success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message()
}

func delivered(status int) Result {
	return Result{Outcome: OutcomeDelivered, StatusCode: status}
}

func failed(status int, err *pkgerrors.Error) Result {
	return Result{Outcome: OutcomeFailed, StatusCode: status, Err: err}
}

func inactive() Result {
	return Result{
		Outcome: OutcomeInactive,
		Err:     pkgerrors.New(pkgerrors.CodeInactive, "Subscription is not active"),
	}
}
