// AngelaMos | 2026
// templates.go

package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type OTPEmail struct {
	SiteName  string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

type InvitationEmail struct {
	SiteName    string
	Name        string
	Designation string
	Link        string
	ExpiresIn   time.Duration
}

type ResetEmail struct {
	SiteName  string
	Name      string
	Link      string
	ExpiresIn time.Duration
}

func BuildOTPEmail(to string, data OTPEmail) (Message, error) {
	var plain bytes.Buffer
	fmt.Fprintf(&plain, "Hello %s,\n\n", data.Name)
	fmt.Fprintf(&plain, "Your %s verification code is: %s\n\n", data.SiteName, data.Code)
	fmt.Fprintf(&plain, "This code expires in %s.\n\n", humanDuration(data.ExpiresIn))
	plain.WriteString("If you did not create an account, you can ignore this email.\n")

	html, err := render(otpTemplate, data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:        to,
		Subject:   fmt.Sprintf("Your %s verification code", data.SiteName),
		PlainBody: plain.String(),
		HTMLBody:  html,
	}, nil
}

func BuildInvitationEmail(to string, data InvitationEmail) (Message, error) {
	var plain bytes.Buffer
	fmt.Fprintf(&plain, "Hello %s,\n\n", data.Name)
	fmt.Fprintf(
		&plain,
		"You have been invited to join %s as %s.\n\n",
		data.SiteName,
		data.Designation,
	)
	plain.WriteString("Complete your profile here:\n")
	plain.WriteString(data.Link + "\n\n")
	fmt.Fprintf(&plain, "This invitation expires in %s.\n", humanDuration(data.ExpiresIn))

	html, err := render(invitationTemplate, data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:        to,
		Subject:   fmt.Sprintf("You're invited to %s", data.SiteName),
		PlainBody: plain.String(),
		HTMLBody:  html,
	}, nil
}

func BuildResetEmail(to string, data ResetEmail) (Message, error) {
	var plain bytes.Buffer
	fmt.Fprintf(&plain, "Hello %s,\n\n", data.Name)
	plain.WriteString("Use this link to choose a new password:\n")
	plain.WriteString(data.Link + "\n\n")
	fmt.Fprintf(&plain, "The link expires in %s.\n\n", humanDuration(data.ExpiresIn))
	plain.WriteString("If you did not ask for a reset, you can ignore this email.\n")

	html, err := render(resetTemplate, data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:        to,
		Subject:   fmt.Sprintf("Reset your %s password", data.SiteName),
		PlainBody: plain.String(),
		HTMLBody:  html,
	}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour && d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case d >= time.Minute:
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

var funcs = template.FuncMap{"human": humanDuration}

var otpTemplate = template.Must(template.New("otp").Funcs(funcs).Parse(layoutHead + `
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Hello {{.Name}}, your verification code is:
              </p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 24px; text-align: center; margin-bottom: 24px;">
                <span style="font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #1f2937; font-family: 'Courier New', monospace;">{{.Code}}</span>
              </div>
              <p style="margin: 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This code expires in {{human .ExpiresIn}}.
              </p>` + layoutFoot))

var invitationTemplate = template.Must(template.New("invitation").Funcs(funcs).Parse(layoutHead + `
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Hello {{.Name}}, you have been invited to join {{.SiteName}} as {{.Designation}}.
              </p>` + buttonBlock("Complete your profile") + `
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This invitation expires in {{human .ExpiresIn}}.
              </p>` + layoutFoot))

var resetTemplate = template.Must(template.New("reset").Funcs(funcs).Parse(layoutHead + `
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Hello {{.Name}}, use the button below to choose a new password.
              </p>` + buttonBlock("Reset password") + `
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                The link expires in {{human .ExpiresIn}}.
              </p>` + layoutFoot))

func buttonBlock(label string) string {
	return `
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.Link}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      ` + label + `
                    </a>
                  </td>
                </tr>
              </table>`
}

const layoutHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.SiteName}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">`

const layoutFoot = `
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
