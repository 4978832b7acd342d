package chat

import (
	"strings"
	"unicode"
)

// Command is a parsed "@" command.
type Command interface {
	// Name labels the command in logs and metrics.
	Name() string
}

// QuitCommand disconnects every session of the requesting user.
type QuitCommand struct{}

// NamesCommand lists present users.
type NamesCommand struct{}

// GroupSetCommand creates a group.
type GroupSetCommand struct {
	Group   string
	Members []string
}

// GroupSendCommand sends a message to a group.
type GroupSendCommand struct {
	Group string
	Text  string
}

// GroupLeaveCommand removes the requester from a group.
type GroupLeaveCommand struct {
	Group string
}

// GroupDeleteCommand deletes a group owned by the requester.
type GroupDeleteCommand struct {
	Group string
}

// PrivateCommand sends a direct message.
type PrivateCommand struct {
	Target string
	Text   string
}

func (QuitCommand) Name() string        { return "quit" }
func (NamesCommand) Name() string       { return "names" }
func (GroupSetCommand) Name() string    { return "group_set" }
func (GroupSendCommand) Name() string   { return "group_send" }
func (GroupLeaveCommand) Name() string  { return "group_leave" }
func (GroupDeleteCommand) Name() string { return "group_delete" }
func (PrivateCommand) Name() string     { return "private" }

// ParseCommand turns command text into a Command. Message bodies are taken
// verbatim from the original text so inner whitespace survives.
func ParseCommand(text string) (Command, error) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, validationf("Empty command")
	}
	head := strings.ToLower(parts[0])
	switch head {
	case "@quit":
		return QuitCommand{}, nil
	case "@names":
		return NamesCommand{}, nil
	case "@group":
		return parseGroupCommand(text, parts)
	}
	if strings.HasPrefix(head, "@") && len(head) > 1 {
		body := restAfter(text, 1)
		if body == "" {
			return nil, validationf("Please provide a message to send")
		}
		return PrivateCommand{Target: parts[0][1:], Text: body}, nil
	}
	return nil, validationf("Unknown command: %s", parts[0])
}

func parseGroupCommand(text string, parts []string) (Command, error) {
	if len(parts) < 3 {
		return nil, validationf("Invalid group command format")
	}
	action := strings.ToLower(parts[1])
	name := normalizeName(parts[2])
	if !validName(name) {
		return nil, validationf("Group name must be between 2 and 20 characters")
	}
	switch action {
	case "set":
		members := splitMembers(restAfter(text, 3))
		if len(members) == 0 {
			return nil, validationf("Please specify at least one group member")
		}
		return GroupSetCommand{Group: name, Members: members}, nil
	case "send":
		body := restAfter(text, 3)
		if body == "" {
			return nil, validationf("Please provide a message to send")
		}
		return GroupSendCommand{Group: name, Text: body}, nil
	case "leave":
		return GroupLeaveCommand{Group: name}, nil
	case "delete":
		return GroupDeleteCommand{Group: name}, nil
	default:
		return nil, validationf("Unknown group command: %s", parts[1])
	}
}

// splitMembers splits a comma separated list, dropping blanks and
// duplicates while keeping the first-seen order.
func splitMembers(raw string) []string {
	var members []string
	seen := make(map[string]struct{})
	for _, m := range strings.Split(raw, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		members = append(members, m)
	}
	return members
}

// restAfter returns text with its first n whitespace separated fields
// removed and the outer whitespace trimmed.
func restAfter(text string, n int) string {
	s := strings.TrimLeftFunc(text, unicode.IsSpace)
	for i := 0; i < n && s != ""; i++ {
		idx := strings.IndexFunc(s, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		s = strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
	}
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
