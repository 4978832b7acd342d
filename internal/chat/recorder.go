package chat

// Recorder receives coordinator metrics.
type Recorder interface {
	SetSessions(n int)
	SetPresent(n int)
	SetRooms(n int)
	SetGroups(n int)
	MessageRouted(kind string)
	CommandHandled(command, outcome string)
	PresenceTransition(from, to string)
	DeliveryDropped()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) SetSessions(int)                   {}
func (NopRecorder) SetPresent(int)                    {}
func (NopRecorder) SetRooms(int)                      {}
func (NopRecorder) SetGroups(int)                     {}
func (NopRecorder) MessageRouted(string)              {}
func (NopRecorder) CommandHandled(string, string)     {}
func (NopRecorder) PresenceTransition(string, string) {}
func (NopRecorder) DeliveryDropped()                  {}
