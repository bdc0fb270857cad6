package db

import (
	"context"
	"errors"
)

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	// ErrReadOnly is returned by writes on a store opened with restricted credentials.
	ErrReadOnly = errors.New("db: store opened read-only")
)

// Op names the Redis command that failed.
type Op string

// Commands issued by the store.
const (
	OpCreateIndex Op = "FT.CREATE"
	OpDropIndex   Op = "FT.DROPINDEX"
	OpIndexInfo   Op = "FT.INFO"
	OpSearch      Op = "FT.SEARCH"
	OpDel         Op = "DEL"
	OpHGetAll     Op = "HGETALL"
	OpHSet        Op = "HSET"
	OpExists      Op = "EXISTS"
	OpGet         Op = "GET"
	OpSet         Op = "SET"
	OpXAdd        Op = "XADD"
)

// Mutates reports whether op writes data.
func (o Op) Mutates() bool {
	switch o {
	case OpCreateIndex, OpDropIndex, OpDel, OpHSet, OpSet, OpXAdd:
		return true
	default:
		return false
	}
}

// Error wraps a store failure with the command that caused it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string { return string(e.Op) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable reports whether err means the database could not be reached
// or answered in time, as opposed to rejecting the command.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
