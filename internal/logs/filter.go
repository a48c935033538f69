package logs

import (
	"encoding/json"
	"strconv"
	"strings"

	"liftmail/internal/logging"
)

// Filter selects log lines. The zero value matches everything.
type Filter struct {
	Component  string
	MessageUID uint32
}

// Match reports whether line satisfies every set criterion. JSON lines are
// decoded; console lines are matched on their rendered prefix and key=value
// pairs.
func (f Filter) Match(line string) bool {
	if f.Component == "" && f.MessageUID == 0 {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(trimmed), &entry); err == nil {
			return f.matchJSON(entry)
		}
	}
	return f.matchConsole(line)
}

func (f Filter) matchJSON(entry map[string]any) bool {
	if f.Component != "" {
		if component, _ := entry[logging.FieldComponent].(string); component != f.Component {
			return false
		}
	}
	if f.MessageUID != 0 {
		uid, ok := entry[logging.FieldMessageUID].(float64)
		if !ok || uint32(uid) != f.MessageUID {
			return false
		}
	}
	return true
}

func (f Filter) matchConsole(line string) bool {
	if f.Component != "" && !strings.Contains(line, " "+f.Component+": ") {
		return false
	}
	if f.MessageUID != 0 {
		needle := logging.FieldMessageUID + "=" + strconv.FormatUint(uint64(f.MessageUID), 10)
		found := false
		for _, field := range strings.Fields(line) {
			if field == needle {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
