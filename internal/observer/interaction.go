package observer

import (
	"strings"
	"unicode/utf8"

	"github.com/visiora/visiora-agent/internal/models"
	"github.com/visiora/visiora-agent/pkg/dom"
)

// maxLabelRunes caps the element text recorded for a click.
const maxLabelRunes = 100

func (o *Observers) onClick(ev dom.Event) {
	if p, ok := clickPayload(ev.Target); ok {
		o.sink.Emit(p)
	}
}

func (o *Observers) onSubmit(ev dom.Event) {
	if p, ok := formPayload(ev.Target); ok {
		o.sink.Emit(p)
	}
}

// clickPayload reports the nearest link or button at or above target.
// Clicks elsewhere produce nothing.
func clickPayload(target *dom.Element) (models.Click, bool) {
	el := target.Closest("a", "button")
	if el == nil {
		return models.Click{}, false
	}
	return models.Click{
		Tag:       el.Tag,
		Href:      el.Attr("href"),
		Text:      truncate(strings.TrimSpace(el.Text), maxLabelRunes),
		ElementID: el.Attr("id"),
	}, true
}

func formPayload(target *dom.Element) (models.FormSubmit, bool) {
	form := target.Closest("form")
	if form == nil {
		return models.FormSubmit{}, false
	}

	name := form.Attr("name")
	if name == "" {
		name = form.Attr("id")
	}
	if name == "" {
		name = "unnamed_form"
	}
	method := strings.ToLower(form.Attr("method"))
	if method == "" {
		method = "get"
	}
	return models.FormSubmit{
		FormName: name,
		Action:   form.Attr("action"),
		Method:   method,
	}, true
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
