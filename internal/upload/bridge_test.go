package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"webpanel/internal/picker"
)

// fakePicker blocks on release until the test resolves it.
type fakePicker struct {
	mu       sync.Mutex
	presents int
	result   *picker.Result
	err      error
	release  chan struct{}
}

func newFakePicker(result *picker.Result) *fakePicker {
	return &fakePicker{result: result}
}

func (f *fakePicker) Present(ctx context.Context) (*picker.Result, error) {
	f.mu.Lock()
	f.presents++
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakePicker) presented() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presents
}

type responder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *responder) respond(accept bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, accept)
	return nil
}

func (r *responder) accepted() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

type delivery struct {
	mu        sync.Mutex
	locations []string
}

func (d *delivery) deliver(ctx context.Context, location string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locations = append(d.locations, location)
	return nil
}

func (d *delivery) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.locations...)
}

func awaitReport(t *testing.T, reports <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case kind := <-reports:
			if kind == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q report", want)
		}
	}
}

func newTestBridge(p picker.Picker) (*Bridge, *responder, *delivery, chan string) {
	resp := &responder{}
	del := &delivery{}
	reports := make(chan string, 16)
	b := NewBridge(p, resp.respond, del.deliver, func(kind, detail string) {
		reports <- kind
	})
	return b, resp, del, reports
}

func TestSentinelDialogConfirmsAndPresentsPicker(t *testing.T) {
	pk := newFakePicker(&picker.Result{Location: "file:///photos/cat.jpg"})
	b, resp, del, reports := newTestBridge(pk)

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := resp.accepted(); len(got) != 1 || !got[0] {
		t.Errorf("expected one confirmed acknowledgment, got %v", got)
	}

	awaitReport(t, reports, "upload_delivered")
	if pk.presented() != 1 {
		t.Errorf("expected one picker session, got %d", pk.presented())
	}
	if got := del.delivered(); len(got) != 1 || got[0] != "file:///photos/cat.jpg" {
		t.Errorf("expected single delivery of picked location, got %v", got)
	}
}

func TestOtherMessagesDeclinedWithoutPicker(t *testing.T) {
	pk := newFakePicker(&picker.Result{Location: "file:///photos/cat.jpg"})
	b, resp, del, _ := newTestBridge(pk)

	messages := []string{"are you sure?", "FILE_UPLOAD_REQUEST", "file_upload_request "}
	for _, msg := range messages {
		if err := b.HandleDialog(context.Background(), DialogKindConfirm, msg); err != nil {
			t.Fatalf("unexpected error for %q: %v", msg, err)
		}
	}

	got := resp.accepted()
	if len(got) != len(messages) {
		t.Fatalf("expected %d acknowledgments, got %d", len(messages), len(got))
	}
	for i, accept := range got {
		if accept {
			t.Errorf("message %q must be declined", messages[i])
		}
	}
	if pk.presented() != 0 {
		t.Errorf("picker must not be presented, got %d sessions", pk.presented())
	}
	if len(del.delivered()) != 0 {
		t.Error("nothing should be delivered")
	}
}

func TestNonConfirmDialogKindDeclined(t *testing.T) {
	pk := newFakePicker(nil)
	b, resp, _, _ := newTestBridge(pk)

	if err := b.HandleDialog(context.Background(), "alert", Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.accepted(); len(got) != 1 || got[0] {
		t.Errorf("alert carrying the sentinel must be declined, got %v", got)
	}
	if pk.presented() != 0 {
		t.Error("picker must not be presented for non-confirm dialogs")
	}
}

func TestCancellationLeavesPageWithoutResponse(t *testing.T) {
	pk := newFakePicker(nil) // nil result = cancelled
	b, _, del, reports := newTestBridge(pk)

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	awaitReport(t, reports, "upload_cancelled")
	if len(del.delivered()) != 0 {
		t.Errorf("cancelled session must deliver nothing, got %v", del.delivered())
	}
	if b.Pending() {
		t.Error("pending slot must be released after cancellation")
	}
}

func TestPickerFailureReported(t *testing.T) {
	pk := newFakePicker(nil)
	pk.err = errors.New("library unavailable")
	b, _, del, reports := newTestBridge(pk)

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	awaitReport(t, reports, "upload_failed")
	if len(del.delivered()) != 0 {
		t.Error("failed session must deliver nothing")
	}
}

func TestDroppedReportCarriesOpenSessionAge(t *testing.T) {
	pk := newFakePicker(&picker.Result{Location: "file:///photos/cat.jpg"})
	pk.release = make(chan struct{})
	defer close(pk.release)

	resp := &responder{}
	del := &delivery{}
	reports := make(chan [2]string, 16)
	b := NewBridge(pk, resp.respond, del.deliver, func(kind, detail string) {
		reports <- [2]string{kind, detail}
	})

	await := func(want string) string {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case rep := <-reports:
				if rep[0] == want {
					return rep[1]
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q report", want)
			}
		}
	}

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID := await("upload_requested")

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	detail := await("upload_dropped")

	if !strings.Contains(detail, sessionID) {
		t.Errorf("drop detail must name the open session %s, got %q", sessionID, detail)
	}
	if !strings.Contains(detail, "open for") {
		t.Errorf("drop detail must carry the session age, got %q", detail)
	}
}

func TestReentrantSentinelDropped(t *testing.T) {
	pk := newFakePicker(&picker.Result{Location: "file:///photos/cat.jpg"})
	pk.release = make(chan struct{})
	b, resp, del, reports := newTestBridge(pk)

	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	awaitReport(t, reports, "upload_requested")

	// Second sentinel while the picker is open: confirmed so the page's
	// script continues, but no second session starts.
	if err := b.HandleDialog(context.Background(), DialogKindConfirm, Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	awaitReport(t, reports, "upload_dropped")

	if got := resp.accepted(); len(got) != 2 || !got[0] || !got[1] {
		t.Errorf("expected both sentinels confirmed, got %v", got)
	}

	close(pk.release)
	awaitReport(t, reports, "upload_delivered")

	if pk.presented() != 1 {
		t.Errorf("expected a single picker session, got %d", pk.presented())
	}
	if got := del.delivered(); len(got) != 1 {
		t.Errorf("expected exactly one delivery, got %v", got)
	}
	if b.Pending() {
		t.Error("pending slot must be released after delivery")
	}
}
