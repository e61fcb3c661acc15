package provider

import (
	"hively/internal/domain"
)

// Outcome is the normalized result of one provider call for one channel.
// Providers never return errors for expected failure modes; they fold them
// into a failed outcome so the worker can treat every channel uniformly.
type Outcome struct {
	Status string
	Error  string
}

func Sent() Outcome {
	return Outcome{Status: domain.DeliverySent}
}

func Failed(msg string) Outcome {
	return Outcome{Status: domain.DeliveryFailed, Error: msg}
}

// Skipped marks a send that was short-circuited, e.g. because the provider
// has no credentials for this process.
func Skipped() Outcome {
	return Outcome{Status: domain.DeliverySkipped}
}
