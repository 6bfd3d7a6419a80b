package miniapp

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is a validated form submission ready to be handed to the outbound
// channel.
type Payload interface {
	Action() string
	// Validate re-checks the payload rules. Receivers call it on decoded data
	// because the sender is not trusted.
	Validate() error
}

type AddCategoryPayload struct {
	Type   string `json:"action"`
	UserID *int64 `json:"user_id"`
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
}

func (p *AddCategoryPayload) Action() string { return ActionAddCategory }

func (p *AddCategoryPayload) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: MsgEnterCategoryName}
	}
	if strings.TrimSpace(p.Emoji) == "" {
		return &ValidationError{Field: "emoji", Message: MsgPickEmoji}
	}
	return nil
}

// SubmitLinkPayload carries a link proposal. CategoryID 0 is the reserved
// "undecided" sentinel, never a stored category id.
type SubmitLinkPayload struct {
	Type        string  `json:"action"`
	UserID      *int64  `json:"user_id"`
	CategoryID  int64   `json:"category_id"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
}

func (p *SubmitLinkPayload) Action() string { return ActionSubmitLink }

func (p *SubmitLinkPayload) Validate() error {
	if p.CategoryID < 0 {
		return &ValidationError{Field: "category", Message: MsgChooseCategory}
	}
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: MsgEnterLinkName}
	}
	if !strings.HasPrefix(strings.TrimSpace(p.URL), "http") {
		return &ValidationError{Field: "url", Message: MsgBadURL}
	}
	return nil
}

// Undecided reports whether the submitter left the category to moderators.
func (p *SubmitLinkPayload) Undecided() bool { return p.CategoryID == SentinelID }

// Build validates trimmed fields in form order and constructs the payload.
// The first failing rule is returned as a *ValidationError.
func Build(kind Kind, userID *int64, raw Fields) (Payload, error) {
	f := raw.Trimmed()
	switch kind {
	case KindAddCategory:
		if f.Name == "" {
			return nil, &ValidationError{Field: "name", Message: MsgEnterCategoryName}
		}
		if f.Emoji == "" {
			return nil, &ValidationError{Field: "emoji", Message: MsgPickEmoji}
		}
		return &AddCategoryPayload{
			Type:   ActionAddCategory,
			UserID: userID,
			Name:   f.Name,
			Emoji:  f.Emoji,
		}, nil

	case KindSubmitLink:
		if f.Category == "" {
			return nil, &ValidationError{Field: "category", Message: MsgChooseCategory}
		}
		catID, err := strconv.ParseInt(f.Category, 10, 64)
		if err != nil || catID < 0 {
			return nil, &ValidationError{Field: "category", Message: MsgChooseCategory}
		}
		if f.Name == "" {
			return nil, &ValidationError{Field: "name", Message: MsgEnterLinkName}
		}
		if !strings.HasPrefix(f.URL, "http") {
			return nil, &ValidationError{Field: "url", Message: MsgBadURL}
		}
		var desc *string
		if f.Description != "" {
			d := f.Description
			desc = &d
		}
		return &SubmitLinkPayload{
			Type:        ActionSubmitLink,
			UserID:      userID,
			CategoryID:  catID,
			Name:        f.Name,
			URL:         f.URL,
			Description: desc,
		}, nil

	default:
		return nil, fmt.Errorf("miniapp: unsupported form kind %v", kind)
	}
}

// Encode serializes the payload into the single opaque message sent through
// the host bridge.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", p.Action(), err)
	}
	return string(b), nil
}

// DecodePayload parses a message produced by Encode. Text fields are trimmed
// and an empty description is normalized to nil; the result is not validated.
func DecodePayload(data []byte) (Payload, error) {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	switch head.Action {
	case ActionAddCategory:
		var p AddCategoryPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", head.Action, err)
		}
		p.Name = strings.TrimSpace(p.Name)
		p.Emoji = strings.TrimSpace(p.Emoji)
		return &p, nil

	case ActionSubmitLink:
		var p SubmitLinkPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", head.Action, err)
		}
		p.Name = strings.TrimSpace(p.Name)
		p.URL = strings.TrimSpace(p.URL)
		if p.Description != nil {
			d := strings.TrimSpace(*p.Description)
			if d == "" {
				p.Description = nil
			} else {
				p.Description = &d
			}
		}
		return &p, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, head.Action)
	}
}
