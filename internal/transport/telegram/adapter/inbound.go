package adapter

import (
	tele "gopkg.in/telebot.v4"

	kit "linkbot/internal/transport"
)

func (a *Adapter) onText(c tele.Context) error {
	if m := c.Message(); m != nil {
		a.emit(kit.Update{Kind: kit.UpdateMessage, Message: toMessage(m)})
	}
	return nil
}

// onWebApp forwards the payload a Mini App posted with sendData.
func (a *Adapter) onWebApp(c tele.Context) error {
	m := c.Message()
	if m == nil || m.WebAppData == nil {
		return nil
	}
	msg := toMessage(m)
	msg.WebAppData = m.WebAppData.Data
	a.emit(kit.Update{Kind: kit.UpdateWebAppData, Message: msg})
	return nil
}

func (a *Adapter) onCallback(c tele.Context) error {
	cb, m := c.Callback(), c.Message()
	if cb == nil || m == nil || m.Chat == nil {
		return nil
	}
	out := &kit.Callback{
		ID:        cb.ID,
		ChatID:    m.Chat.ID,
		ThreadID:  m.ThreadID,
		MessageID: m.ID,
		Data:      cb.Data,
	}
	if cb.Sender != nil {
		out.FromID = cb.Sender.ID
	}
	a.emit(kit.Update{Kind: kit.UpdateCallback, Callback: out})
	return nil
}

// emit never blocks the telebot handler goroutine.
func (a *Adapter) emit(up kit.Update) {
	a.mu.Lock()
	out := a.out
	a.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.dropped.Add(1)
	}
}

func toMessage(m *tele.Message) *kit.Message {
	msg := &kit.Message{ID: m.ID, ThreadID: m.ThreadID, Text: m.Text}
	if ch := m.Chat; ch != nil {
		msg.ChatID = ch.ID
		msg.IsGroup = ch.Type == tele.ChatGroup || ch.Type == tele.ChatSuperGroup
	}
	if u := m.Sender; u != nil {
		msg.FromID, msg.FromUsername, msg.FromFirstName = u.ID, u.Username, u.FirstName
	}
	return msg
}
