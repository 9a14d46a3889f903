package screen

import (
	"strings"
	"sync"
)

// tooManyRedirects is the engine's classification for a redirect loop or an
// excessive redirect chain, surfaced through the CDP navigation error text.
const tooManyRedirects = "ERR_TOO_MANY_REDIRECTS"

// loadFunc performs one load of the screen's composed URL.
type loadFunc func() error

// loadObserver watches page-load outcomes. A failure classified as
// too-many-redirects triggers exactly one reload per observer lifetime; every
// other failure (and any failure after the retry) is reported but left for
// the host to act on.
type loadObserver struct {
	load   loadFunc
	report func(kind, detail string)

	mu      sync.Mutex
	retried bool
}

func newLoadObserver(load loadFunc, report func(kind, detail string)) *loadObserver {
	if report == nil {
		report = func(string, string) {}
	}
	return &loadObserver{load: load, report: report}
}

// Load runs one load attempt, applying the one-shot redirect retry.
func (o *loadObserver) Load() error {
	err := o.load()
	if err == nil {
		return nil
	}

	if isTooManyRedirects(err) && o.markRetried() {
		o.report(EventRedirectRetry, err.Error())
		if retryErr := o.load(); retryErr != nil {
			o.report(EventLoadFailed, retryErr.Error())
			return retryErr
		}
		return nil
	}

	o.report(EventLoadFailed, err.Error())
	return err
}

// Retried reports whether the one-shot retry has fired.
func (o *loadObserver) Retried() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.retried
}

// markRetried flips the retry flag, returning false when it was already set.
func (o *loadObserver) markRetried() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.retried {
		return false
	}
	o.retried = true
	return true
}

func isTooManyRedirects(err error) bool {
	return err != nil && strings.Contains(err.Error(), tooManyRedirects)
}
