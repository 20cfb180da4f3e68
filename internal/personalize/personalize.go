// Package personalize substitutes placeholder tokens in a message or
// subject template with per-recipient and per-job values.
package personalize

import (
	"strings"

	"github.com/avetel/outreach/internal/recipient"
)

// Tokens recognized in templates. Replacement is a single pass over the
// bracket literals, case-sensitive, with no escaping: a recipient field
// that happens to contain a token literal is not substituted again.
const (
	TokenYourName    = "[Your name]"
	TokenFirstName   = "[First Name]"
	TokenLastName    = "[Last Name]"
	TokenJobTitle    = "[Job Title]"
	TokenCompanyName = "[Company Name]"
	TokenPosition    = "[Position]"
)

// Personalizer renders templates for a specific sender identity. The
// sender's name is resolved server-side at send time so there is a
// single source of truth for identity.
type Personalizer struct {
	SenderName   string
	Signature    string
	PortfolioURL string
}

// Apply replaces every recognized token in template with values for the
// given recipient and job. Subjects and bodies use the same substitution.
func (p *Personalizer) Apply(template string, r recipient.Recipient, jobTitle, companyName string) string {
	replacer := strings.NewReplacer(
		TokenYourName, p.SenderName,
		TokenFirstName, r.FirstName,
		TokenLastName, r.LastName,
		TokenJobTitle, jobTitle,
		TokenCompanyName, companyName,
		TokenPosition, r.Position,
	)
	return replacer.Replace(template)
}

// Body renders a message body: token substitution plus the portfolio
// link appended after the signature, when one is configured.
func (p *Personalizer) Body(template string, r recipient.Recipient, jobTitle, companyName string) string {
	body := p.Apply(template, r, jobTitle, companyName)
	if p.PortfolioURL != "" {
		body += "\n\nPortfolio: " + p.PortfolioURL
	}
	return body
}

// EnsureSignature appends the configured signature to a draft that does
// not already close with one.
func (p *Personalizer) EnsureSignature(draft string) string {
	if strings.Contains(draft, "Best regards") || strings.Contains(draft, "Sincerely") {
		return draft
	}
	signature := p.Signature
	if signature == "" {
		signature = "Best regards,\n" + TokenYourName
	}
	return draft + "\n\n" + signature
}
