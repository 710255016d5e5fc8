package rstcp

import "errors"

// Validator accumulates validation errors found while checking a frame's
// size and field consistency. The ipv4 and tcp packages each define
// ValidateSize/ValidateExceptCRC methods on their own Frame types that
// report into a Validator, following the same shape so callers can check
// IP and TCP headers with one pattern.
type Validator struct {
	allowMultiErrs bool
	accum          []error
}

// AllowMultiErrs controls whether successive AddError calls accumulate or
// whether only the first reported error is kept.
func (v *Validator) AllowMultiErrs(allow bool) { v.allowMultiErrs = allow }

// ResetErr clears all accumulated errors, readying the Validator for reuse.
func (v *Validator) ResetErr() { v.accum = v.accum[:0] }

// Err returns the accumulated validation error, or nil if none were added.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}

// AddError reports a validation error. If AllowMultiErrs is false (the
// default) only the first error added since the last ResetErr is kept.
func (v *Validator) AddError(err error) {
	if len(v.accum) != 0 && !v.allowMultiErrs {
		return
	}
	v.accum = append(v.accum, err)
}
