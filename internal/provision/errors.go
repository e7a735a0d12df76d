package provision

import "fmt"

var (
	// ErrPoolExhausted is returned when every host number in the pool's
	// range is already assigned. Nothing has been mutated.
	ErrPoolExhausted = fmt.Errorf("address pool exhausted")

	// ErrDuplicatePeerName is returned when a peer with the requested name
	// is already registered and the caller did not confirm replacement.
	ErrDuplicatePeerName = fmt.Errorf("peer name already registered")
)

// InvalidConfigError reports a foreign configuration that failed validation.
// Nothing is persisted when it is returned.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Stage identifies where in the provisioning sequence a run is.
type Stage string

const (
	StageNew             Stage = "new"
	StageAddressAssigned Stage = "address_assigned"
	StageKeysGenerated   Stage = "keys_generated"
	StageRendered        Stage = "document_rendered"
	StageRegistered      Stage = "registered"
	StageReloadRequested Stage = "reload_requested"
	StageDone            Stage = "done"
)

// StageError is a failure before the registry mutation committed. The
// registry is untouched and the run can simply be retried.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("provisioning failed at stage %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ReloadWarning is the one asymmetric failure: the peer is durably
// registered but the running service was not told about it. Callers must
// surface it as a warning with remediation, not as a plain error.
type ReloadWarning struct {
	PeerName  string
	Interface string
	Err       error
}

func (e *ReloadWarning) Error() string {
	return fmt.Sprintf("peer %q is registered but reloading %s failed: %s", e.PeerName, e.Interface, e.Err)
}

func (e *ReloadWarning) Unwrap() error {
	return e.Err
}

// Remediation describes how to get the service back in sync.
func (e *ReloadWarning) Remediation() string {
	return fmt.Sprintf("the registry was updated; re-run the reload or restart the %s service manually", e.Interface)
}
