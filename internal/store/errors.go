package store

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrNotFound means the slug or id resolved to no visible document.
	ErrNotFound = errors.New("document not found")
	// ErrOffline means the database could not be reached at all. The session
	// presents this differently from a plain 404.
	ErrOffline = errors.New("store unreachable")
)

// classify maps low-level connectivity failures onto ErrOffline so callers
// can distinguish "gone" from "can't tell".
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrOffline, err)
	}
	return err
}
