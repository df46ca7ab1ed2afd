/*
Package rterrors defines the closed error taxonomy shared by every containerrt
component.

Every fallible operation in this module fails with exactly one Kind from the
enumeration below. Callers distinguish failure modes by Kind rather than
string matching, either with KindOf or with errors.Is against an *Error of
the same Kind:

	if rterrors.KindOf(err) == rterrors.ContainerNotFound {
		...
	}
	if errors.Is(err, rterrors.New(rterrors.ContainerNotFound, "")) {
		...
	}

Errors are never used for expected control flow: a missing registry lookup
returns an "absent" signal (ok bool), not an error.
*/
package rterrors
