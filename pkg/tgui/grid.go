package tgui

import kit "linkbot/internal/transport"

// Grid lays buttons out cols per row.
func Grid(cols int, buttons []kit.Button) [][]kit.Button {
	if cols <= 0 {
		cols = 1
	}
	var rows [][]kit.Button
	for len(buttons) > 0 {
		n := min(cols, len(buttons))
		rows = append(rows, buttons[:n:n])
		buttons = buttons[n:]
	}
	return rows
}
