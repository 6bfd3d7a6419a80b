package tgui

import (
	"errors"
	"fmt"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data limit in bytes.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats "namespace:action[:p1[:p2...]]". Payload parts are formatted
// with %v and kept as-is.
func Data(namespace, action string, payload ...any) string {
	parts := make([]string, 0, 2+len(payload))
	parts = append(parts, strings.TrimSpace(namespace), strings.TrimSpace(action))
	for _, p := range payload {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}

// CheckData rejects data Telegram would refuse.
func CheckData(data string) error {
	if len(data) > MaxCallbackDataLen {
		return fmt.Errorf("%w: %d bytes", ErrCallbackDataTooLong, len(data))
	}
	return nil
}
