package core

import "github.com/hashicorp/go-multierror"

// ErrorList accumulates independent failures from a batch of otherwise
// unrelated operations (per-constraint errors under continue_on_error,
// per-analyzer errors under IncrementalConfig.fail_fast=false) into one
// value callers can still treat as a single error.
type ErrorList struct {
	errs *multierror.Error
}

func NewErrorList() *ErrorList {
	return &ErrorList{errs: &multierror.Error{}}
}

func (l *ErrorList) Add(err error) {
	if err == nil {
		return
	}
	l.errs = multierror.Append(l.errs, err)
}

func (l *ErrorList) Len() int {
	if l.errs == nil {
		return 0
	}
	return len(l.errs.Errors)
}

// ErrOrNil returns nil if nothing was added, otherwise the combined error.
func (l *ErrorList) ErrOrNil() error {
	return l.errs.ErrorOrNil()
}

func (l *ErrorList) Errors() []error {
	if l.errs == nil {
		return nil
	}
	return l.errs.Errors
}
