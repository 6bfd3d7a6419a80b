package miniapp

import "errors"

// User-facing messages.
const (
	MsgChooseCategory    = "Choose a category!"
	MsgEnterLinkName     = "Enter the link name!"
	MsgEnterCategoryName = "Enter the category name!"
	MsgPickEmoji         = "Pick an emoji for the category!"
	MsgBadURL            = "URL must start with http:// or https://"

	MsgAddCategoryFailed = "Could not add the category. Try again."
	MsgSubmitLinkFailed  = "Could not submit the link. Try again."
)

var (
	// ErrBusy is returned by Submit while another attempt is in flight.
	ErrBusy = errors.New("miniapp: submission in progress")
	// ErrClosed is returned by Submit after a successful submission.
	ErrClosed = errors.New("miniapp: form closed")
	// ErrUnknownAction is returned by DecodePayload for unrecognized action tags.
	ErrUnknownAction = errors.New("miniapp: unknown action")
)

// ValidationError reports a user-input shape violation. Message is shown to
// the user as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// TransmissionError reports a failed hand-off to the outbound channel.
type TransmissionError struct {
	Message string
	Err     error
}

func (e *TransmissionError) Error() string {
	if e.Err == nil {
		return "transmission failed"
	}
	return "transmission failed: " + e.Err.Error()
}

func (e *TransmissionError) Unwrap() error { return e.Err }
