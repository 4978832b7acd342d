package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCommand tests command parsing. It verifies each command form and
// that message bodies keep their inner whitespace.
func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr string
	}{
		{name: "quit", input: "@quit", want: QuitCommand{}},
		{name: "quit ignores case and trailing text", input: "  @QUIT now", want: QuitCommand{}},
		{name: "names", input: "@names", want: NamesCommand{}},
		{
			name:  "group set",
			input: "@group set Team bob, carol ,, bob",
			want:  GroupSetCommand{Group: "team", Members: []string{"bob", "carol"}},
		},
		{
			name:  "group send",
			input: "@group send team  hi   there ",
			want:  GroupSendCommand{Group: "team", Text: "hi   there"},
		},
		{name: "group leave", input: "@group leave team", want: GroupLeaveCommand{Group: "team"}},
		{name: "group delete", input: "@group DELETE team", want: GroupDeleteCommand{Group: "team"}},
		{name: "private", input: "@Bob  hello  world", want: PrivateCommand{Target: "Bob", Text: "hello  world"}},
		{name: "empty", input: "   ", wantErr: "Empty command"},
		{name: "not a command", input: "hello", wantErr: "Unknown command: hello"},
		{name: "bare at", input: "@", wantErr: "Unknown command: @"},
		{name: "group missing name", input: "@group set", wantErr: "Invalid group command format"},
		{name: "group name too short", input: "@group set t bob", wantErr: "Group name must be between 2 and 20 characters"},
		{name: "group name too long", input: "@group leave abcdefghijklmnopqrstu", wantErr: "Group name must be between 2 and 20 characters"},
		{name: "group set without members", input: "@group set team  , ", wantErr: "Please specify at least one group member"},
		{name: "group send without text", input: "@group send team", wantErr: "Please provide a message to send"},
		{name: "unknown group action", input: "@group rename team", wantErr: "Unknown group command: rename"},
		{name: "private without text", input: "@bob   ", wantErr: "Please provide a message to send"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Equal(t, KindValidation, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
