package verification

import (
	"fmt"
	"strings"

	emailtemplates "github.com/djenkins452/dbawholelifejourney-sub000/pkg/email-templates"
	smtp_client "github.com/djenkins452/dbawholelifejourney-sub000/pkg/smtp-client"
)

const (
	verificationEmailSubject      = "Verify your email address"
	verificationEmailTemplateName = "email-verification"
)

const defaultVerificationEmailTemplate = `<html>
<body>
<p>Welcome! Please confirm your email address to finish creating your account.</p>
<p><a href="{{.verificationLink}}">Verify my email address</a></p>
<p>If the button does not work, copy this link into your browser:</p>
<p>{{.verificationLink}}</p>
<p>The link stays valid for {{.validityPeriod}}. If you did not create this account, you can ignore this message.</p>
</body>
</html>`

// SmtpEmailSender turns tokens into verification links and dispatches them
// through the SMTP connection pool.
type SmtpEmailSender struct {
	client         *smtp_client.SmtpClients
	linkBaseURL    string
	templateDef    string
	validityPeriod string
}

// NewSmtpEmailSender builds a sender for the given link base URL (the
// token is appended as the last path segment). An empty templateDef falls
// back to the built-in template.
func NewSmtpEmailSender(client *smtp_client.SmtpClients, linkBaseURL string, templateDef string, validityPeriod string) *SmtpEmailSender {
	if templateDef == "" {
		templateDef = defaultVerificationEmailTemplate
	}
	if validityPeriod == "" {
		validityPeriod = "24 hours"
	}
	return &SmtpEmailSender{
		client:         client,
		linkBaseURL:    strings.TrimSuffix(linkBaseURL, "/"),
		templateDef:    templateDef,
		validityPeriod: validityPeriod,
	}
}

func (s *SmtpEmailSender) SendVerificationEmail(to string, token string) error {
	if s.client == nil {
		return fmt.Errorf("no smtp client configured")
	}

	content, err := emailtemplates.ResolveTemplate(
		verificationEmailTemplateName,
		s.templateDef,
		map[string]string{
			"verificationLink": s.linkBaseURL + "/" + token,
			"validityPeriod":   s.validityPeriod,
		},
	)
	if err != nil {
		return err
	}
	return s.client.SendMail([]string{to}, verificationEmailSubject, content, nil)
}
