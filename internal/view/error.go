// Package view renders the few HTML pages the API serves to browsers.
package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorPage is shown when a browser-facing flow, such as an OAuth callback,
// cannot complete. backURL is where the "Back" link points.
func ErrorPage(title, message, backURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		page := `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>` + templ.EscapeString(title) + `</title>
<style>body{font-family:system-ui,sans-serif;max-width:32rem;margin:4rem auto;padding:0 1rem;color:#222}</style>
</head>
<body>
<h1>` + templ.EscapeString(title) + `</h1>
<p>` + templ.EscapeString(message) + `</p>
<p><a href="` + templ.EscapeString(string(templ.URL(backURL))) + `">Back to sign in</a></p>
</body>
</html>
`
		_, err := io.WriteString(w, page)
		return err
	})
}
