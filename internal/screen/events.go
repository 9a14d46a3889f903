package screen

import "time"

// Event kinds emitted over the screen's event feed.
const (
	EventFallback        = "fallback"
	EventLoadStarted     = "load_started"
	EventLoadComplete    = "load_complete"
	EventLoadFailed      = "load_failed"
	EventRedirectRetry   = "redirect_retry"
	EventKeyboardChanged = "keyboard_changed"
	EventUploadRequested = "upload_requested"
	EventUploadDelivered = "upload_delivered"
	EventUploadCancelled = "upload_cancelled"
	EventUploadDropped   = "upload_dropped"
	EventUploadFailed    = "upload_failed"
	EventDialogDeclined  = "dialog_declined"
)

// Event is one observable screen occurrence.
type Event struct {
	Type     string    `json:"type"`
	ScreenID string    `json:"screen_id"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

// EventSink receives screen events. Implementations must not block.
type EventSink interface {
	Publish(Event)
}
