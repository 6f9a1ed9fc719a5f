// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// FeedbackRequestData holds data for feedback request and reminder emails.
type FeedbackRequestData struct {
	SiteName      string
	ReviewerName  string
	CandidateName string
	JobTitle      string
	CommitteeRole string
	FeedbackLink  string
	ExpiresIn     string // e.g., "7 days"
	Deadline      string // optional, e.g., "Mar 17, 2026"
	Reminder      bool
}

// BuildFeedbackRequestEmail creates a feedback request (or reminder, when
// data.Reminder is set) with both HTML and text bodies.
func BuildFeedbackRequestEmail(data FeedbackRequestData) Email {
	subject := fmt.Sprintf("Feedback requested: %s for %s", data.CandidateName, data.JobTitle)
	if data.Reminder {
		subject = "Reminder: " + subject
	}
	return Email{
		To:       "", // Set by caller
		Subject:  subject,
		TextBody: buildFeedbackRequestText(data),
		HTMLBody: render(feedbackRequestHTML, data),
	}
}

func buildFeedbackRequestText(data FeedbackRequestData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Hello %s,\n\n", greetingName(data.ReviewerName)))
	if data.Reminder {
		buf.WriteString("This is a reminder that your feedback is still outstanding.\n\n")
	}
	buf.WriteString(fmt.Sprintf("You are on the hiring committee for %s (%s)", data.CandidateName, data.JobTitle))
	if data.CommitteeRole != "" {
		buf.WriteString(fmt.Sprintf(" as %s", roleLabel(data.CommitteeRole)))
	}
	buf.WriteString(".\n\nSubmit your feedback here:\n")
	buf.WriteString(data.FeedbackLink + "\n\n")
	if data.Deadline != "" {
		buf.WriteString(fmt.Sprintf("The committee deadline is %s.\n", data.Deadline))
	}
	buf.WriteString(fmt.Sprintf("This link expires in %s and can be used once.\n", data.ExpiresIn))
	return buf.String()
}

// CompletionNoticeData holds data for the committee completion email.
type CompletionNoticeData struct {
	SiteName       string
	CandidateName  string
	JobTitle       string
	Recommendation string
	AverageScore   float64
	Recommend      int
	NotRecommend   int
	SubmittedCount int
	TotalMembers   int
}

// BuildCompletionNoticeEmail creates the email sent once a committee reaches
// quorum.
func BuildCompletionNoticeEmail(data CompletionNoticeData) Email {
	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("Committee complete: %s for %s", data.CandidateName, data.JobTitle),
		TextBody: buildCompletionText(data),
		HTMLBody: render(completionHTML, data),
	}
}

func buildCompletionText(data CompletionNoticeData) string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("The hiring committee for %s (%s) has completed its review.\n\n", data.CandidateName, data.JobTitle))
	buf.WriteString(fmt.Sprintf("Recommendation: %s\n", strings.ToUpper(data.Recommendation)))
	buf.WriteString(fmt.Sprintf("Average score: %.1f\n", data.AverageScore))
	buf.WriteString(fmt.Sprintf("Recommend: %d  Not recommend: %d\n", data.Recommend, data.NotRecommend))
	buf.WriteString(fmt.Sprintf("Feedback received: %d of %d\n", data.SubmittedCount, data.TotalMembers))
	return buf.String()
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.String()
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

func roleLabel(role string) string {
	return strings.ReplaceAll(role, "_", " ")
}

var funcs = template.FuncMap{"greeting": greetingName, "role": roleLabel, "upper": strings.ToUpper}

var feedbackRequestHTML = template.Must(template.New("feedback_request").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Feedback Request</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; font-size: 16px; color: #374151; line-height: 1.5;">
              <p style="margin: 0 0 16px;">Hello {{greeting .ReviewerName}},</p>
              {{if .Reminder}}<p style="margin: 0 0 16px;"><strong>Your feedback is still outstanding.</strong></p>{{end}}
              <p style="margin: 0 0 24px;">You are on the hiring committee for <strong>{{.CandidateName}}</strong> ({{.JobTitle}}){{if .CommitteeRole}} as {{role .CommitteeRole}}{{end}}.</p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.FeedbackLink}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Submit Feedback
                    </a>
                  </td>
                </tr>
              </table>
              {{if .Deadline}}<p style="margin: 24px 0 0; font-size: 14px; color: #6b7280; text-align: center;">Committee deadline: {{.Deadline}}</p>{{end}}
              <p style="margin: 8px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This link expires in {{.ExpiresIn}} and can be used once.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

var completionHTML = template.Must(template.New("completion").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Committee Complete</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; font-size: 16px; color: #374151; line-height: 1.5;">
              <p style="margin: 0 0 16px;">The hiring committee for <strong>{{.CandidateName}}</strong> ({{.JobTitle}}) has completed its review.</p>
              <p style="margin: 0 0 8px;">Recommendation: <strong>{{upper .Recommendation}}</strong></p>
              <p style="margin: 0 0 8px;">Average score: {{printf "%.1f" .AverageScore}}</p>
              <p style="margin: 0 0 8px;">Recommend: {{.Recommend}} &middot; Not recommend: {{.NotRecommend}}</p>
              <p style="margin: 0;">Feedback received: {{.SubmittedCount}} of {{.TotalMembers}}</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))
