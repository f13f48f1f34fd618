package domain

import "time"

type OutcomeKind int

const (
	// OutcomeAck acknowledges the message; the attempt is finished for good,
	// whether it succeeded or failed permanently.
	OutcomeAck OutcomeKind = iota
	// OutcomeRetry leaves the work incomplete and asks the queue to redeliver
	// after Delay.
	OutcomeRetry
	// OutcomeFatal discards the message without retry (malformed payload).
	OutcomeFatal
)

// Outcome is the explicit retry decision of a queue handler. The queue adapter
// maps it onto its acknowledgement protocol; handlers never signal retry by
// returning an error.
type Outcome struct {
	Kind   OutcomeKind
	Delay  time.Duration
	Reason string
}

func Ack() Outcome { return Outcome{Kind: OutcomeAck} }

func Retry(delay time.Duration) Outcome {
	return Outcome{Kind: OutcomeRetry, Delay: delay}
}

func Fatal(reason string) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: reason}
}

// Backoff returns min(cap, 2^attempt seconds) for a 1-based delivery attempt.
func Backoff(attempt int, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > cap {
		return cap
	}
	return d
}
