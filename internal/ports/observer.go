package ports

import "github.com/rcc-labs/rcc/internal/domain"

// StepStatus is the reported status of a provisioning step.
type StepStatus int

const (
	StepProgress StepStatus = iota
	StepRetry
	StepSuccess
	StepError
)

// String returns a short operator-facing label.
func (s StepStatus) String() string {
	switch s {
	case StepProgress:
		return "progress"
	case StepRetry:
		return "retry"
	case StepSuccess:
		return "success"
	case StepError:
		return "error"
	default:
		return "unknown"
	}
}

// Observer receives progress events during a batch. Implementations
// must be fast and must not block: they are called synchronously from
// the provisioning sequence.
type Observer interface {
	// OnBatchProgress is called before each device starts.
	// index is 1-based.
	OnBatchProgress(index, total int, candidate domain.CandidateNetwork)

	// OnStepUpdate is called as a step progresses, retries, succeeds
	// or fails.
	OnStepUpdate(stepName string, status StepStatus)

	// OnDeviceComplete is called once per device with its terminal
	// record.
	OnDeviceComplete(record *domain.ProvisioningRecord)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnBatchProgress(int, int, domain.CandidateNetwork) {}
func (NoopObserver) OnStepUpdate(string, StepStatus) {}
func (NoopObserver) OnDeviceComplete(*domain.ProvisioningRecord) {}
