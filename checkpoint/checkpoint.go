// Package checkpoint decorates errors with the file and line where they passed through,
// which results in something similar to a stacktrace once an error bubbled up a few layers.
//
// Both the wrapped error and the kind attached to a checkpoint stay reachable through
// errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err into a checkpoint carrying the caller position.
// It returns nil if err is nil.
func From(err error) error {
	if passthrough(err) {
		return err
	}
	return newCheckpoint(nil, err)
}

// Wrap records a checkpoint for prev and classifies it with kind.
// It returns nil if prev is nil, so it can be used directly on return values:
//
//	data, err := dev.ReadSectors(lba, 1)
//	if err != nil {
//		return nil, checkpoint.Wrap(err, ErrTransport)
//	}
//
// errors.Is(err, ErrTransport) then holds, as does errors.Is for whatever prev matched.
func Wrap(prev, kind error) error {
	if passthrough(prev) {
		return prev
	}
	return newCheckpoint(kind, prev)
}

// Errorf creates a checkpoint of the given kind with a formatted description.
// The description may itself wrap errors with %w.
func Errorf(kind error, format string, args ...interface{}) error {
	return newCheckpoint(kind, fmt.Errorf(format, args...))
}

// passthrough reports errors which must never be decorated. io.EOF has to be returned as is,
// see https://github.com/golang/go/issues/39155
func passthrough(err error) bool {
	return err == nil || err == io.EOF || err == io.ErrUnexpectedEOF
}

func newCheckpoint(kind, prev error) *checkpoint {
	// Skip newCheckpoint and the exported constructor.
	_, file, line, ok := runtime.Caller(2)
	return &checkpoint{
		kind:     kind,
		prev:     prev,
		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	kind error
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if !e.callerOk {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", e.file, e.line)
}

func (e *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString("File: ")
	b.WriteString(e.location())
	if e.kind != nil {
		b.WriteString("\n\t")
		b.WriteString(e.kind.Error())
	}

	if e.prev == nil {
		return b.String()
	}

	// Indent foreign errors so the chain stays readable.
	prev := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prev = "\t" + strings.ReplaceAll(prev, "\n", "\n\t")
	}
	b.WriteString("\n")
	b.WriteString(prev)
	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.kind != nil && errors.Is(e.kind, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.kind != nil && errors.As(e.kind, target)
}
