package adapter

import (
	tele "gopkg.in/telebot.v4"

	kit "linkbot/internal/transport"
)

// toMarkup converts a transport keyboard. Inline button data is sent verbatim
// so it arrives unchanged in onCallback.
func toMarkup(k *kit.Keyboard) *tele.ReplyMarkup {
	if k == nil || len(k.Rows) == 0 {
		return nil
	}
	if k.Inline {
		return &tele.ReplyMarkup{InlineKeyboard: mapRows(k.Rows, inlineButton)}
	}
	return &tele.ReplyMarkup{ResizeKeyboard: k.Resize, ReplyKeyboard: mapRows(k.Rows, replyButton)}
}

func mapRows[T any](rows [][]kit.Button, conv func(kit.Button) T) [][]T {
	out := make([][]T, 0, len(rows))
	for _, row := range rows {
		btns := make([]T, 0, len(row))
		for _, b := range row {
			btns = append(btns, conv(b))
		}
		out = append(out, btns)
	}
	return out
}

func inlineButton(b kit.Button) tele.InlineButton {
	return tele.InlineButton{Text: b.Text, Data: b.Data, URL: b.URL, WebApp: webApp(b.WebAppURL)}
}

func replyButton(b kit.Button) tele.ReplyButton {
	return tele.ReplyButton{Text: b.Text, WebApp: webApp(b.WebAppURL)}
}

func webApp(url string) *tele.WebApp {
	if url == "" {
		return nil
	}
	return &tele.WebApp{URL: url}
}
