package optimistic

import (
	"sync"
	"time"
)

// DefaultToastTTL is how long a notification stays up.
const DefaultToastTTL = 3600 * time.Millisecond

type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is a user-visible notification. Cause holds the raw error text for
// error toasts and is never meant for display.
type Toast struct {
	ID      uint64
	Kind    ToastKind
	Message string
	Cause   string
	ShownAt time.Time
}

// Toaster holds at most one notification. Showing a new one replaces the
// current one; each dismisses itself after the TTL.
type Toaster struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	seq      uint64
	current  *Toast
	timer    *time.Timer
	listener func(*Toast)
}

type ToasterOption func(*Toaster)

func WithTTL(ttl time.Duration) ToasterOption {
	return func(t *Toaster) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// OnChange registers fn to be called with the new current toast, or nil when
// it is dismissed. fn runs outside the toaster's lock.
func OnChange(fn func(*Toast)) ToasterOption {
	return func(t *Toaster) {
		t.listener = fn
	}
}

func NewToaster(opts ...ToasterOption) *Toaster {
	t := &Toaster{
		ttl: DefaultToastTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toaster) Success(message string) Toast {
	return t.show(ToastSuccess, message, nil)
}

func (t *Toaster) Error(message string, cause error) Toast {
	return t.show(ToastError, message, cause)
}

// Current returns the displayed toast, if any.
func (t *Toaster) Current() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Toast{}, false
	}
	return *t.current, true
}

// Dismiss removes the toast with the given id. It does nothing if that toast
// has already been replaced.
func (t *Toaster) Dismiss(id uint64) bool {
	t.mu.Lock()
	if t.current == nil || t.current.ID != id {
		t.mu.Unlock()
		return false
	}
	t.current = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		listener(nil)
	}
	return true
}

func (t *Toaster) show(kind ToastKind, message string, cause error) Toast {
	t.mu.Lock()
	t.seq++
	toast := Toast{
		ID:      t.seq,
		Kind:    kind,
		Message: message,
		ShownAt: t.now(),
	}
	if cause != nil {
		toast.Cause = cause.Error()
	}
	t.current = &toast

	if t.timer != nil {
		t.timer.Stop()
	}
	id := toast.ID
	t.timer = time.AfterFunc(t.ttl, func() { t.Dismiss(id) })
	listener := t.listener
	t.mu.Unlock()

	if listener != nil {
		shown := toast
		listener(&shown)
	}
	return toast
}
