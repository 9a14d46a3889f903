// Package upload bridges in-page upload requests to the native photo picker.
//
// The page signals an upload by calling window.confirm with the reserved
// message Sentinel. The bridge confirms that dialog immediately so page
// script never blocks, then presents the picker off the dialog path. The
// picked location is handed back into the page: pages that define
// window.onFileUpload(location) receive it there, everyone else gets a
// "file-upload" CustomEvent on document with {url: location} in detail.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webpanel/internal/picker"

	"github.com/google/uuid"
)

// Sentinel is the reserved confirm-dialog message that starts an upload.
// Exact match, case-sensitive.
const Sentinel = "file_upload_request"

// DialogKindConfirm is the only dialog kind the bridge understands.
const DialogKindConfirm = "confirm"

// RespondFunc acknowledges the currently open JavaScript dialog.
type RespondFunc func(accept bool) error

// DeliverFunc hands a picked location back into the page context.
type DeliverFunc func(ctx context.Context, location string) error

// ReportFunc surfaces bridge outcomes to the host's event feed.
type ReportFunc func(kind, detail string)

// request is the single-slot pending mailbox: set once when a picker session
// starts, consumed once when it resolves. A second sentinel while it is held
// is dropped rather than overwriting an unconsumed request; the drop report
// carries how long the open session has been running.
type request struct {
	id      string
	started time.Time
}

// Bridge intercepts JavaScript dialogs for one screen. It only understands
// the upload sentinel; every other message is declined untouched.
type Bridge struct {
	picker  picker.Picker
	respond RespondFunc
	deliver DeliverFunc
	report  ReportFunc

	mu      sync.Mutex
	pending *request
}

func NewBridge(p picker.Picker, respond RespondFunc, deliver DeliverFunc, report ReportFunc) *Bridge {
	if report == nil {
		report = func(string, string) {}
	}
	return &Bridge{picker: p, respond: respond, deliver: deliver, report: report}
}

// HandleDialog acknowledges one JavaScript dialog. A confirm dialog carrying
// the sentinel is confirmed and starts a picker session; anything else is
// declined with no further action.
func (b *Bridge) HandleDialog(ctx context.Context, kind, message string) error {
	if kind != DialogKindConfirm || message != Sentinel {
		b.report("dialog_declined", truncate(message, 120))
		return b.respond(false)
	}

	// Acknowledge before presenting anything so the page's confirm() call
	// returns without waiting on the picker.
	if err := b.respond(true); err != nil {
		return fmt.Errorf("confirm upload dialog: %w", err)
	}

	req, fresh := b.begin()
	if !fresh {
		b.report("upload_dropped", fmt.Sprintf("picker session %s open for %s",
			req.id, time.Since(req.started).Round(time.Millisecond)))
		return nil
	}
	b.report("upload_requested", req.id)

	// Presenting synchronously here would re-enter the engine's
	// dialog-handling path.
	go b.present(ctx, req)
	return nil
}

// Pending reports whether a picker session is currently open.
func (b *Bridge) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending != nil
}

// begin claims the pending slot. When a session is already open it returns
// that session with fresh=false; id and started are immutable, so reading
// them without the lock is safe.
func (b *Bridge) begin() (*request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return b.pending, false
	}
	b.pending = &request{id: uuid.NewString(), started: time.Now()}
	return b.pending, true
}

func (b *Bridge) finish(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil && b.pending.id == id {
		b.pending = nil
	}
}

func (b *Bridge) present(ctx context.Context, req *request) {
	defer b.finish(req.id)

	res, err := b.picker.Present(ctx)
	if err != nil {
		b.report("upload_failed", err.Error())
		return
	}
	if res == nil {
		// Cancellation leaves the page without a response on purpose.
		b.report("upload_cancelled", req.id)
		return
	}

	if err := b.deliver(ctx, res.Location); err != nil {
		b.report("upload_failed", fmt.Sprintf("deliver %s: %v", res.Location, err))
		return
	}
	b.report("upload_delivered", res.Location)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
