package registry

import "fmt"

type InvalidPeerErrorList struct {
	errors []InvalidPeerError
}

func (e InvalidPeerErrorList) Error() string {
	return fmt.Sprintf("registry contains invalid peer sections: %v", e.errors)
}

type InvalidPeerError struct {
	name string
	err  error
}

func (e InvalidPeerError) Error() string {
	return fmt.Sprintf("invalid peer section %q: %s", e.name, e.err)
}

func (e InvalidPeerError) Unwrap() error {
	return e.err
}
