package session

// Confirmation prompts shown when navigation away would lose work.
const (
	msgUnsavedChanges = "You have unsaved changes. Are you sure you want to leave?"
	msgUploadInFlight = "An image is still uploading. Are you sure you want to leave?"
)

// GuardNavigation reports whether navigating away from the session should be
// intercepted, and with which confirmation message. Either unsaved changes or
// an in-flight upload alone is sufficient to prompt; the guard only applies
// in edit mode. Overriding the prompt is the navigator's concern.
func (c *Controller) GuardNavigation() (message string, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.EditMode || c.closed {
		return "", false
	}
	if c.state.IsDirty {
		return msgUnsavedChanges, true
	}
	if c.state.IsUploading {
		return msgUploadInFlight, true
	}
	return "", false
}
