package magiclink

import (
	"context"
	"time"
)

// SendEmailFunc sends an email with a plain text body.
type SendEmailFunc func(ctx context.Context, to, subject, body string) error

// EmailParams is passed as data when executing the email template.
type EmailParams struct {
	Email          string
	SiteName       string
	Link           string
	LinkExpiration time.Duration
	SenderName     string
}

// DefaultEmailSubject is the default for Config.EmailSubject.
const DefaultEmailSubject = "Your magic link"

// DefaultEmailTemplate is the default for Config.EmailTemplate.
const DefaultEmailTemplate = `Hi {{.Email}},

Click the link below to sign in to {{.SiteName}}:

{{.Link}}

The link is valid for {{printf "%.f" .LinkExpiration.Minutes}} minutes and can be used once.

If you did not request a magic link, you can ignore this email.


Regards,

{{.SenderName}}
`
