// Package errors carries the context-wrapping helpers used on the I/O and
// config paths. The hot engine path reports failures as reject reasons and
// never allocates errors.
package errors

import "fmt"

// Wrap prefixes err with a static context message. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf prefixes err with a formatted context message. A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
