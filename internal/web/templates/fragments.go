// Package templates renders the HTML fragments returned to HTMX clients.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/strata/internal/core"
)

// ErrorAlert renders a dismissable error box.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-error" role="alert" data-code="%s"><p class="alert-message">%s</p>`,
			templ.EscapeString(code), templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p class="alert-action">%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<span class="alert-code">%s</span></div>`, templ.EscapeString(code))
		return err
	})
}

// ReviewView is the data behind ReviewPanel.
type ReviewView struct {
	SessionID  string
	Filename   string
	State      core.ReviewState
	Layers     []core.Layer
	Result     core.ProcessedResult
	Validation core.ValidationResult
}

// ReviewPanel renders the layer table of an open review, flagging layers
// with validation errors and the classification issues above it.
func ReviewPanel(v ReviewView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		bad := make(map[int]bool, len(v.Validation.Errors))
		for _, e := range v.Validation.Errors {
			bad[e.Index] = true
		}

		p := &printer{w: w}
		p.printf(`<section class="review" id="review-%s" data-state="%s">`, esc(v.SessionID), esc(string(v.State)))
		p.printf(`<h2>%s</h2>`, esc(v.Filename))
		p.printf(`<p class="confidence">Confidence %s</p>`, strconv.FormatFloat(v.Result.ConfidenceScore, 'f', 2, 64))

		issues := append(append([]core.SemanticError{}, v.Result.Recoverable...), v.Result.Warnings...)
		if len(issues) > 0 {
			p.printf(`<ul class="issues">`)
			for _, se := range issues {
				p.printf(`<li class="issue issue-%s">%s</li>`, esc(string(se.Severity)), esc(se.Message))
			}
			p.printf(`</ul>`)
		}

		p.printf(`<table class="layers"><thead><tr><th>#</th><th>Material</th><th>From</th><th>To</th><th>Confidence</th></tr></thead><tbody>`)
		for i, l := range v.Layers {
			class := "layer"
			if bad[i] {
				class += " layer-invalid"
			}
			if l.UserEdited {
				class += " layer-edited"
			}
			p.printf(`<tr class="%s"><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				class, i, esc(l.Material), num(l.StartDepth), num(l.EndDepth), esc(string(l.Confidence)))
		}
		p.printf(`</tbody></table></section>`)
		return p.err
	})
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func esc(s string) string { return templ.EscapeString(s) }

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
