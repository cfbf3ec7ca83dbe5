package cardtree

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a caller mistake: a kind that cannot be resolved or that
	// does not fit the value. It is always raised before any node is visited.
	ErrConfig = errors.New("cardtree: configuration error")
	// ErrData marks input that could not be converted where conversion was required.
	ErrData = errors.New("cardtree: data error")
)

type ConfigError struct {
	Kind   Kind
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Kind == KindInvalid {
		return fmt.Sprintf("cardtree: %s", e.Reason)
	}
	return fmt.Sprintf("cardtree: %s: %s", e.Kind, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

type DataError struct {
	Kind Kind
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("cardtree: %s: %v", e.Kind, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Is(target error) bool {
	return target == ErrData
}

func configErrorf(kind Kind, format string, args ...any) error {
	return &ConfigError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func dataError(kind Kind, err error) error {
	return &DataError{Kind: kind, Err: err}
}
