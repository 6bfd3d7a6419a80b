package router

import (
	"html"
	"strings"
)

// helpText renders HTML help. Owner-only commands are listed for owners only.
func (r *Router) helpText(args []string, owner bool) string {
	r.mu.RLock()
	cmds := r.commands
	byName := r.byName
	r.mu.RUnlock()

	if len(args) > 0 {
		c, ok := byName[sanitizeCommand(args[0])]
		if !ok || c.Hidden || (c.Access == AccessOwnerOnly && !owner) {
			return "❓ <b>Unknown command</b>\nType <code>/help</code> for the list."
		}
		lines := []string{"<b>/" + html.EscapeString(c.Name) + "</b>"}
		if c.Description != "" {
			lines = append(lines, html.EscapeString(c.Description))
		}
		if c.Usage != "" {
			lines = append(lines, "", "Usage: <code>"+html.EscapeString(c.Usage)+"</code>")
		}
		if len(c.Aliases) > 0 {
			lines = append(lines, "Aliases: "+html.EscapeString(strings.Join(c.Aliases, ", ")))
		}
		return strings.Join(lines, "\n")
	}

	var public, owners []string
	for _, c := range visibleTo(cmds, owner) {
		line := "/" + html.EscapeString(c.Name) + " - " + html.EscapeString(c.Description)
		if c.Access == AccessOwnerOnly {
			owners = append(owners, line)
			continue
		}
		public = append(public, line)
	}
	lines := append([]string{"📚 <b>Commands</b>"}, public...)
	if len(owners) > 0 {
		lines = append(lines, "", "🔒 <b>Owners</b>")
		lines = append(lines, owners...)
	}
	lines = append(lines, "", "Type <code>/help &lt;command&gt;</code> for details.")
	return strings.Join(lines, "\n")
}

func visibleTo(cmds []Command, owner bool) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Hidden || (c.Access == AccessOwnerOnly && !owner) {
			continue
		}
		out = append(out, c)
	}
	return out
}
