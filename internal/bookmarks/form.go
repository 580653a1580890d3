package bookmarks

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// User-facing messages.
const (
	MsgMissingFields = "Please fill in both title and URL"
	MsgInvalidURL    = "Please enter a valid URL (include http:// or https://)"
	MsgCreateFailed  = "Failed to add bookmark. Please try again."
	MsgDeleteFailed  = "Failed to delete bookmark. Please try again."
	MsgConfirmDelete = "Are you sure you want to delete this bookmark?"
)

// Creator creates bookmarks. *SyncStore implements it.
type Creator interface {
	Create(ctx context.Context, title, url string) (*Bookmark, error)
}

// Form is the add-bookmark draft. It rejects overlapping submits, keeps the
// draft when a submit fails and clears it when one succeeds.
type Form struct {
	mu         sync.Mutex
	title      string
	url        string
	submitting bool
	message    string
}

// SetTitle updates the draft title and clears any message.
func (f *Form) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	f.message = ""
}

// SetURL updates the draft url and clears any message.
func (f *Form) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.message = ""
}

// Draft returns the current title and url as typed.
func (f *Form) Draft() (title, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.url
}

// Submitting reports whether a submit is in flight.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Message returns the message to show next to the form, if any.
func (f *Form) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Submit sends the draft to c.
func (f *Form) Submit(ctx context.Context, c Creator) (*Bookmark, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	title, url := f.title, f.url
	if strings.TrimSpace(title) == "" || strings.TrimSpace(url) == "" {
		f.message = MsgMissingFields
		f.mu.Unlock()
		field := "title"
		if strings.TrimSpace(title) != "" {
			field = "url"
		}
		return nil, &ValidationError{Field: field, Err: errors.New("must not be empty")}
	}
	f.submitting = true
	f.message = ""
	f.mu.Unlock()

	rec, err := c.Create(ctx, title, url)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil {
		f.message = messageFor(err)
		return nil, err
	}
	f.title, f.url = "", ""
	return rec, nil
}

func messageFor(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr) && verr.Field == "url":
		return MsgInvalidURL
	case errors.As(err, &verr):
		return MsgMissingFields
	default:
		return MsgCreateFailed
	}
}
