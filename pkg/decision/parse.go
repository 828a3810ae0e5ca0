package decision

import (
	"encoding/json"
	"strings"

	"github.com/931405/mem1/pkg/log"
)

// ParseAction extracts an action from a model response. It is total: any
// input, however malformed, yields an action, with NOOP as the last
// resort. Three response shapes are understood:
//
//  1. {"memory": [{"id": "0", "event": "ADD"}, ...]} - the event of the
//     first element decides, since id 0 is the current candidate
//  2. {"action": "ADD"} or any response mentioning an action field
//  3. a bare keyword anywhere in the text
//
// "NONE" is an alias models sometimes produce for NOOP and normalizes to
// it.
func ParseAction(response string) Action {
	if strings.Contains(response, `"memory"`) && strings.Contains(response, "[") {
		if action, ok := parseMemoryArray(response); ok {
			return action
		}
	}
	return scanKeyword(response)
}

type memoryEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"`
}

type memoryResponse struct {
	Memory []memoryEvent `json:"memory"`
}

func parseMemoryArray(response string) (Action, bool) {
	var parsed memoryResponse
	if err := json.Unmarshal([]byte(jsonPart(response)), &parsed); err != nil {
		log.Debug("Memory array response did not parse, falling back to keyword scan", "error", err)
		return ActionNoop, false
	}
	if len(parsed.Memory) == 0 {
		return ActionNoop, false
	}
	event := strings.ToUpper(parsed.Memory[0].Event)
	switch {
	case strings.Contains(event, "ADD"):
		return ActionAdd, true
	case strings.Contains(event, "UPDATE"):
		return ActionUpdate, true
	case strings.Contains(event, "DELETE"):
		return ActionDelete, true
	case strings.Contains(event, "NOOP"), strings.Contains(event, "NONE"):
		return ActionNoop, true
	}
	return ActionNoop, false
}

// jsonPart trims surrounding prose by cutting from the first "{" to the
// last "}".
func jsonPart(response string) string {
	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}

func scanKeyword(response string) Action {
	upper := strings.ToUpper(response)
	switch {
	case strings.Contains(upper, "ADD"):
		return ActionAdd
	case strings.Contains(upper, "UPDATE"):
		return ActionUpdate
	case strings.Contains(upper, "DELETE"):
		return ActionDelete
	case strings.Contains(upper, "NOOP"), strings.Contains(upper, "NONE"):
		return ActionNoop
	}
	log.Debug("No action keyword recognized, defaulting to NOOP")
	return ActionNoop
}
