/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"sync"

	goerrors "github.com/pixil98/go-errors"
)

// ErrorList collects errors from concurrent workers. Unlike a bare go-errors
// list, the combined error it returns still matches every collected error with
// errors.Is and errors.As.
type ErrorList struct {
	mu   sync.Mutex
	errs []error
}

// NewErrorList creates an empty ErrorList
func NewErrorList() *ErrorList {
	return &ErrorList{}
}

// Add records err. Nil errors are ignored.
func (l *ErrorList) Add(err error) {
	if err == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

// Len returns the number of collected errors
func (l *ErrorList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}

// Err returns nil, the single collected error, or a combined error.
func (l *ErrorList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch len(l.errs) {
	case 0:
		return nil
	case 1:
		return l.errs[0]
	}

	el := goerrors.NewErrorList()
	for _, err := range l.errs {
		el.Add(err)
	}
	return &multiError{
		msg:  el.Err(),
		errs: append([]error(nil), l.errs...),
	}
}

type multiError struct {
	msg  error
	errs []error
}

func (e *multiError) Error() string {
	return e.msg.Error()
}

func (e *multiError) Unwrap() []error {
	return e.errs
}
