// Package command dispatches in-chat control commands. Commands are regular
// chat lines starting with the "!eaglechat" prefix; anything else passes
// through to rendering untouched.
package command

import (
	"log"
	"strings"
)

const prefix = "!eaglechat"

// Actions are the session operations a chat command may trigger.
type Actions interface {
	Reload()
}

// Handle inspects one chat line and runs the matching action. It reports
// whether the line was a control command; handled lines are not rendered.
// Unknown sub-commands are logged and swallowed so typos never reach the
// overlay.
func Handle(text string, actions Actions) bool {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.EqualFold(fields[0], prefix) {
		return false
	}
	if len(fields) < 2 {
		log.Printf("command: missing sub-command")
		return true
	}

	switch strings.ToLower(fields[1]) {
	case "reload":
		log.Printf("command: reload requested")
		if actions != nil {
			actions.Reload()
		}
	default:
		log.Printf("command: unknown sub-command %q", fields[1])
	}
	return true
}
