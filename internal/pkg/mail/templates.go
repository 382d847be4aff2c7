package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const watchActivateTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">Confirm your subscription</h2>
  <p>You asked to be notified about <strong>{{.WhatDescription}}</strong> on {{.SiteName}}.</p>
  <p>Click the button below to start receiving notifications:</p>
  <p style="margin-top:24px">
    <a href="{{.ActivateURL}}" style="background:#4f46e5;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Confirm subscription</a>
  </p>
  <p style="color:#999;font-size:12px">If you did not request this, ignore this email and nothing will be sent.</p>
</div>
</body>
</html>`

const replyNotifyTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">{{.QuestionTitle}}</h2>
  <p><strong>{{.Author}}</strong> posted a new reply:</p>
  <div style="background:#f3f4f6;border-radius:8px;padding:12px;font-size:14px;line-height:22px;color:#333">{{.Content}}</div>
  {{if .Solved}}<p style="color:#16a34a;font-size:14px">This reply was marked as the solution.</p>{{end}}
  <p style="margin-top:24px">
    <a href="{{.DetailURL}}" style="background:#0ea5e9;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">View the thread</a>
  </p>
  {{if .UnsubscribeURL}}<p style="color:#999;font-size:12px"><a href="{{.UnsubscribeURL}}" style="color:#9ca3af">Stop watching this question</a></p>{{end}}
  <p style="color:#9ca3af;font-size:10px;text-align:center">This mail was sent automatically by {{.SiteName}}. &copy;{{year}}</p>
</div>
</body>
</html>`

const revisionReadyTpl = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif;background:#f5f5f5;padding:20px">
<div style="max-width:600px;margin:0 auto;background:#fff;border-radius:8px;padding:24px">
  <h2 style="color:#333">{{.DocumentTitle}}</h2>
  <p>A new revision by <strong>{{.Author}}</strong> is ready for review ({{.Locale}}).</p>
  {{if .Comment}}<div style="background:#f3f4f6;border-radius:8px;padding:12px;font-size:14px;color:#333">{{.Comment}}</div>{{end}}
  <p style="margin-top:24px">
    <a href="{{.ReviewURL}}" style="background:#0ea5e9;color:#fff;padding:8px 16px;text-decoration:none;border-radius:4px">Review revision</a>
  </p>
  {{if .UnsubscribeURL}}<p style="color:#999;font-size:12px"><a href="{{.UnsubscribeURL}}" style="color:#9ca3af">Stop watching this locale</a></p>{{end}}
  <p style="color:#9ca3af;font-size:10px;text-align:center">This mail was sent automatically by {{.SiteName}}. &copy;{{year}}</p>
</div>
</body>
</html>`

// WatchActivateData is the data for watch activation emails.
type WatchActivateData struct {
	SiteName        string
	WhatDescription string
	ActivateURL     string
}

// ReplyNotifyData is the data for question reply notification emails.
type ReplyNotifyData struct {
	SiteName       string
	QuestionTitle  string
	Author         string
	Content        string
	Solved         bool
	DetailURL      string
	UnsubscribeURL string
}

// RevisionReadyData is the data for ready-for-review notification emails.
type RevisionReadyData struct {
	SiteName       string
	DocumentTitle  string
	Author         string
	Locale         string
	Comment        string
	ReviewURL      string
	UnsubscribeURL string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildWatchActivate renders the activation email for a new anonymous watch.
func BuildWatchActivate(to string, data WatchActivateData) (Message, error) {
	if strings.TrimSpace(data.SiteName) == "" {
		data.SiteName = "Tidings"
	}
	if strings.TrimSpace(data.WhatDescription) == "" {
		data.WhatDescription = "new activity"
	}
	html, err := renderTemplate(watchActivateTpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] Please confirm your subscription", data.SiteName),
		HTML:    html,
	}, nil
}

// BuildReplyNotify renders the new-reply notification.
func BuildReplyNotify(to string, data ReplyNotifyData) (Message, error) {
	if strings.TrimSpace(data.SiteName) == "" {
		data.SiteName = "Tidings"
	}
	html, err := renderTemplate(replyNotifyTpl, data)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("[%s] New reply to: %s", data.SiteName, data.QuestionTitle)
	if data.Solved {
		subject = fmt.Sprintf("[%s] Solved: %s", data.SiteName, data.QuestionTitle)
	}
	return Message{
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}, nil
}

// BuildRevisionReady renders the ready-for-review notification.
func BuildRevisionReady(to string, data RevisionReadyData) (Message, error) {
	if strings.TrimSpace(data.SiteName) == "" {
		data.SiteName = "Tidings"
	}
	html, err := renderTemplate(revisionReadyTpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("[%s] Revision ready for review: %s", data.SiteName, data.DocumentTitle),
		HTML:    html,
	}, nil
}
