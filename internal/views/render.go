// Package views renders the server's HTML pages and caches the results until
// the data behind a page changes.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/noticing/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"day": func(t time.Time) string { return t.Format(models.DateLayout) },
	"orDash": func(s string) string {
		if s == "" {
			return "—"
		}
		return s
	},
}

var pages = map[string]*template.Template{
	"login":     parse("login.html"),
	"today":     parse("today.html"),
	"dashboard": parse("dashboard.html"),
}

func parse(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
}

type LoginPage struct {
	Email   string
	Message string
}

type TodayPage struct {
	Answers models.Answers
}

type DashboardPage struct {
	User      models.User
	Dashboard *models.Dashboard
}

func RenderLogin(data LoginPage) ([]byte, error) {
	return render("login", data)
}

func RenderToday(data TodayPage) ([]byte, error) {
	return render("today", data)
}

func RenderDashboard(data DashboardPage) ([]byte, error) {
	return render("dashboard", data)
}

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages[name].ExecuteTemplate(&buf, name+".html", data); err != nil {
		return nil, fmt.Errorf("failed to render %s page: %w", name, err)
	}
	return buf.Bytes(), nil
}
