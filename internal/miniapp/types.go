package miniapp

import (
	"fmt"
	"strings"
)

// Kind selects which form a Controller drives.
type Kind int

const (
	KindAddCategory Kind = iota + 1
	KindSubmitLink
)

const (
	ActionAddCategory = "add_category"
	ActionSubmitLink  = "submit_link"
)

// Action returns the payload action tag for the form kind.
func (k Kind) Action() string {
	switch k {
	case KindAddCategory:
		return ActionAddCategory
	case KindSubmitLink:
		return ActionSubmitLink
	default:
		return ""
	}
}

func (k Kind) String() string {
	if a := k.Action(); a != "" {
		return a
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts an action tag ("add_category", "submit_link") or the
// short page names used by the web forms ("category", "link").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ActionAddCategory, "category", "add-category":
		return KindAddCategory, nil
	case ActionSubmitLink, "link", "submit-link":
		return KindSubmitLink, nil
	default:
		return 0, fmt.Errorf("unknown form kind %q", s)
	}
}

// labels are the submit-control texts and the generic transmission failure
// message for each form.
type labels struct {
	idle string
	busy string
	fail string
}

// SubmitLabel is the idle text of the form's submit control.
func (k Kind) SubmitLabel() string { return k.labels().idle }

func (k Kind) labels() labels {
	if k == KindSubmitLink {
		return labels{
			idle: "Submit for moderation",
			busy: "Sending...",
			fail: MsgSubmitLinkFailed,
		}
	}
	return labels{
		idle: "Add category",
		busy: "Adding...",
		fail: MsgAddCategoryFailed,
	}
}

// Category is a selectable link category as served by the category API.
type Category struct {
	ID    int64  `json:"id"`
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// Option is one entry of the category selector.
type Option struct {
	ID    int64
	Label string
}

// Value is the selector value submitted for the option.
func (o Option) Value() string { return fmt.Sprint(o.ID) }

// Fields carries the raw values of every form input. Inputs that a form kind
// does not have are left empty.
type Fields struct {
	Category    string
	Name        string
	Emoji       string
	URL         string
	Description string
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (f Fields) Trimmed() Fields {
	return Fields{
		Category:    strings.TrimSpace(f.Category),
		Name:        strings.TrimSpace(f.Name),
		Emoji:       strings.TrimSpace(f.Emoji),
		URL:         strings.TrimSpace(f.URL),
		Description: strings.TrimSpace(f.Description),
	}
}

// State is the controller's position in a submission attempt.
//
//	Idle -> Validating -> Idle (rejected)
//	                   -> Submitting -> Idle (failed)
//	                                 -> Closing (terminal)
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
