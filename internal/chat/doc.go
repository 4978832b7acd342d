// Package chat implements the in-memory chat coordinator: the session
// registry, rooms, groups, private routing, the command interpreter, the
// presence sweep and the broadcast gateway that fans results out to live
// connections.
//
// All coordinator state is owned by a single goroutine (Coordinator.Run).
// Transport code submits inbound events into that loop; each event is handled
// to completion, with its broadcasts emitted, before the next one starts.
package chat
