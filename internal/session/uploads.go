package session

import (
	"context"
	"errors"
	"io"
)

var ErrNoUploader = errors.New("no upload service configured")

// BeginUpload and EndUpload are the paired start/stop signals for uploads the
// editor performs itself. IsUploading reflects "at least one in flight", so
// the flag clears only when the last outstanding EndUpload arrives; callers
// must pair the two 1:1.
func (c *Controller) BeginUpload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.uploads++
	if !c.state.IsUploading {
		c.state.IsUploading = true
		c.notifyLocked()
	}
}

func (c *Controller) EndUpload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploads > 0 {
		c.uploads--
	}
	if c.uploads == 0 && c.state.IsUploading {
		c.state.IsUploading = false
		c.notifyLocked()
	}
}

// UploadImage stores an image through the upload collaborator and returns its
// hosted URL, keeping IsUploading set for the duration of the call. Failures
// propagate to the caller; the paired stop signal still fires.
func (c *Controller) UploadImage(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	if c.opts.Uploader == nil {
		return "", ErrNoUploader
	}
	c.BeginUpload()
	defer c.EndUpload()
	return c.opts.Uploader.Upload(ctx, name, r, size, contentType)
}
