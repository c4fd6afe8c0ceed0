package keyboard

import tele "gopkg.in/telebot.v4"

// Labels of the confirmation keyboard.
const (
	Yes = "yes"
	No  = "no"
)

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a one-time reply keyboard from rows of text.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// Chunk lays labels out n per row.
func Chunk(labels []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	var rows [][]string
	for i := 0; i < len(labels); i += n {
		end := min(i+n, len(labels))
		rows = append(rows, labels[i:end])
	}
	return rows
}

// YesNo is the confirmation keyboard.
func YesNo() *tele.ReplyMarkup {
	return ReplyButtons([]string{Yes, No})
}
