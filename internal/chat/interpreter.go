package chat

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (c *Coordinator) handleCommand(id, text string) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return
	}
	if !s.authenticated {
		c.rec.CommandHandled("unauthenticated", "rejected")
		c.replyError(id, permissionf("You must be authenticated to use commands"))
		return
	}
	cmd, err := ParseCommand(text)
	if err != nil {
		c.rec.CommandHandled("invalid", "rejected")
		c.replyError(id, err)
		return
	}

	c.log.Debug("executing command", zap.String("session", id), zap.String("command", cmd.Name()))
	if err := c.execute(s, cmd); err != nil {
		c.rec.CommandHandled(cmd.Name(), "rejected")
		c.replyError(id, err)
		return
	}
	c.rec.CommandHandled(cmd.Name(), "ok")
}

func (c *Coordinator) execute(s *Session, cmd Command) error {
	switch cmd := cmd.(type) {
	case QuitCommand:
		c.quit(s)
		return nil
	case NamesCommand:
		names := c.sessions.Usernames()
		c.system(s.ID, fmt.Sprintf("Connected users (%d): %s", len(names), strings.Join(names, ", ")), NoticeInfo)
		return nil
	case GroupSetCommand:
		return c.createGroup(s, cmd)
	case GroupSendCommand:
		return c.sendGroup(s, cmd)
	case GroupLeaveCommand:
		return c.leaveGroup(s, cmd)
	case GroupDeleteCommand:
		return c.deleteGroup(s, cmd)
	case PrivateCommand:
		return c.sendPrivate(s, cmd)
	default:
		return internal(fmt.Errorf("unhandled command %T", cmd))
	}
}

// quit ends every session of the requesting user. Each room the user was in
// hears one leave notice, and the connections are closed after the
// farewell is queued.
func (c *Coordinator) quit(s *Session) {
	username := s.Username()
	c.system(s.ID, "Disconnecting from server...", NoticeInfo)

	ids := c.sessions.SessionsOf(username)
	announced := make(map[string]struct{})
	var conns []Conn
	for _, sid := range ids {
		sess, ok := c.sessions.Get(sid)
		if !ok {
			continue
		}
		if _, done := announced[sess.Room]; !done {
			announced[sess.Room] = struct{}{}
			c.gw.Publish(roomTopic(sess.Room), systemEvent(sess.Name+" has left the chat", NoticeLeave), ids...)
		}
		if conn := c.removeSession(sess); conn != nil {
			conns = append(conns, conn)
		}
	}
	for _, conn := range conns {
		conn.Close()
	}

	c.log.Info("user quit", zap.String("user", username), zap.Int("sessions", len(ids)))
	c.broadcastClientsTotal()
	c.broadcastUserList()
}

func (c *Coordinator) createGroup(s *Session, cmd GroupSetCommand) error {
	if _, exists := c.groups.Get(cmd.Group); exists {
		return conflictf("Group %q already exists", cmd.Group)
	}
	owner := s.Username()
	members := []string{owner}
	var missing []string
	for _, m := range cmd.Members {
		switch {
		case m == owner:
			// already first
		case c.sessions.IsPresent(m):
			members = append(members, m)
		default:
			missing = append(missing, m)
		}
	}

	g, err := c.groups.Create(cmd.Group, owner, members, c.now())
	if err != nil {
		return err
	}
	c.system(s.ID, fmt.Sprintf("Group %q created with members: %s", g.Name, strings.Join(g.Members, ", ")), NoticeGroup)
	if len(missing) > 0 {
		c.system(s.ID, "Could not add these users (not found): "+strings.Join(missing, ", "), NoticeWarning)
	}
	for _, m := range g.Members[1:] {
		c.sendUser(m, systemEvent(fmt.Sprintf("You've been added to group %q by %s", g.Name, owner), NoticeGroup))
	}
	c.log.Info("group created", zap.String("group", g.Name), zap.String("owner", owner), zap.Strings("members", g.Members))
	c.broadcastUserList()
	return nil
}

func (c *Coordinator) memberGroup(s *Session, name string) (*Group, error) {
	g, ok := c.groups.Get(name)
	if !ok {
		return nil, notFoundf("Group %q does not exist", name)
	}
	if !g.HasMember(s.Username()) {
		return nil, permissionf("You are not a member of group %q", name)
	}
	return g, nil
}

func (c *Coordinator) sendGroup(s *Session, cmd GroupSendCommand) error {
	g, err := c.memberGroup(s, cmd.Group)
	if err != nil {
		return err
	}
	msg := Message{
		ID:       uuid.NewString(),
		Target:   TargetGroup,
		Name:     s.Name,
		Message:  cmd.Text,
		Group:    g.Name,
		DateTime: c.now(),
	}
	ev := Event{Type: EventGroupMessage, Data: msg}
	for _, m := range g.Members {
		c.sendUser(m, ev)
	}
	c.rec.MessageRouted(string(TargetGroup))
	return nil
}

func (c *Coordinator) leaveGroup(s *Session, cmd GroupLeaveCommand) error {
	g, err := c.memberGroup(s, cmd.Group)
	if err != nil {
		return err
	}
	username := s.Username()
	g.remove(username)
	c.system(s.ID, fmt.Sprintf("You have left group %q", g.Name), NoticeGroup)
	for _, m := range g.Members {
		c.sendUser(m, systemEvent(fmt.Sprintf("%s has left group %q", username, g.Name), NoticeGroup))
	}

	switch {
	case g.Owner == username:
		for _, m := range g.Members {
			c.sendUser(m, systemEvent(fmt.Sprintf("Group %q has been deleted by the owner", g.Name), NoticeGroup))
		}
		c.groups.Delete(g.Name)
		c.log.Info("group deleted by departing owner", zap.String("group", g.Name), zap.String("owner", username))
	case len(g.Members) == 0:
		c.groups.Delete(g.Name)
	}
	c.broadcastUserList()
	return nil
}

func (c *Coordinator) deleteGroup(s *Session, cmd GroupDeleteCommand) error {
	g, ok := c.groups.Get(cmd.Group)
	if !ok {
		return notFoundf("Group %q does not exist", cmd.Group)
	}
	username := s.Username()
	if g.Owner != username {
		return permissionf("You are not the owner of group %q", g.Name)
	}
	for _, m := range g.Members {
		if m != username {
			c.sendUser(m, systemEvent(fmt.Sprintf("Group %q has been deleted by %s", g.Name, username), NoticeGroup))
		}
	}
	c.groups.Delete(g.Name)
	c.system(s.ID, fmt.Sprintf("Group %q has been deleted", g.Name), NoticeGroup)
	c.log.Info("group deleted", zap.String("group", g.Name), zap.String("owner", username))
	c.broadcastUserList()
	return nil
}

func (c *Coordinator) sendPrivate(s *Session, cmd PrivateCommand) error {
	target, ok := c.sessions.Resolve(cmd.Target)
	if !ok {
		return notFoundf("User %q is not online", cmd.Target)
	}
	sender := s.Username()
	if target == sender {
		return validationf("You cannot send private messages to yourself")
	}
	msg := Message{
		ID:       uuid.NewString(),
		Target:   TargetPrivate,
		Name:     sender,
		Message:  cmd.Text,
		To:       target,
		From:     sender,
		DateTime: c.now(),
	}
	ev := Event{Type: EventPrivateMessage, Data: msg}
	c.sendUser(target, ev)
	c.sendUser(sender, ev)
	c.rec.MessageRouted(string(TargetPrivate))
	return nil
}
