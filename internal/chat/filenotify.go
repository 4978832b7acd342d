package chat

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/Tyrowin/ichat/internal/files"
)

// FileShared announces an upload to the conversation it was shared into.
func (c *Coordinator) FileShared(ctx context.Context, rec files.Record) error {
	ev := Event{Type: EventFileShared, Data: FileShared{
		Username:   rec.Owner,
		Room:       rec.Room,
		ChatType:   string(rec.Context.Type),
		ChatTarget: rec.Context.Target,
		FileInfo: FileNotice{
			Filename:     rec.ID,
			OriginalName: rec.OriginalName,
			Size:         rec.Size,
			SizeText:     humanize.Bytes(uint64(rec.Size)),
			IsPrivate:    rec.IsPrivate(),
		},
	}}
	return c.Do(ctx, func() { c.deliverToContext(rec, ev) })
}

// FileDeleted announces a deletion.
func (c *Coordinator) FileDeleted(ctx context.Context, rec files.Record, by string) error {
	ev := Event{Type: EventFileDeleted, Data: FileDeleted{
		Username:     by,
		Room:         rec.Room,
		Filename:     rec.ID,
		OriginalName: rec.OriginalName,
	}}
	return c.Do(ctx, func() { c.deliverToContext(rec, ev) })
}

// AccessUpdated announces an access list change.
func (c *Coordinator) AccessUpdated(ctx context.Context, rec files.Record, by string) error {
	ev := Event{Type: EventFileAccessUpdated, Data: FileAccessUpdated{
		UpdatedBy: by,
		Room:      rec.Room,
		Filename:  rec.ID,
		IsPrivate: rec.IsPrivate(),
	}}
	return c.Do(ctx, func() { c.deliverToContext(rec, ev) })
}

// deliverToContext sends ev to the audience of the file's conversation: the
// room's members, the group's members, or both private parties.
func (c *Coordinator) deliverToContext(rec files.Record, ev Event) {
	target := rec.Context.Target
	switch rec.Context.Type {
	case files.ChatGroup:
		if g, ok := c.groups.Get(normalizeName(target)); ok {
			for _, m := range g.Members {
				c.sendUser(m, ev)
			}
		}
	case files.ChatPrivate:
		c.sendUser(rec.Owner, ev)
		if peer, ok := c.sessions.Resolve(target); ok && peer != rec.Owner {
			c.sendUser(peer, ev)
		}
	default:
		if target == "" {
			target = rec.Room
		}
		c.gw.Publish(roomTopic(normalizeName(target)), ev)
	}
}
