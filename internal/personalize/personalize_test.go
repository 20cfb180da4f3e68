package personalize

import (
	"strings"
	"testing"

	"github.com/avetel/outreach/internal/recipient"
)

func TestApplyReplacesAllTokens(t *testing.T) {
	p := &Personalizer{SenderName: "Anu"}
	r := recipient.Recipient{Email: "a@b.com", FirstName: "Jo", LastName: "Li", Position: "Eng"}

	template := "Hi [First Name] [Last Name], I saw your [Position] work. " +
		"I'm applying for [Job Title] at [Company Name]. Best regards, [Your name]"

	got := p.Apply(template, r, "SWE", "Acme")

	for _, token := range []string{TokenYourName, TokenFirstName, TokenLastName, TokenJobTitle, TokenCompanyName, TokenPosition} {
		if strings.Contains(got, token) {
			t.Errorf("Apply() left token %q in %q", token, got)
		}
	}
	for _, want := range []string{"Jo", "Li", "Eng", "SWE", "Acme", "Anu"} {
		if !strings.Contains(got, want) {
			t.Errorf("Apply() result missing %q: %q", want, got)
		}
	}
}

func TestApplyReplacesEveryOccurrence(t *testing.T) {
	p := &Personalizer{SenderName: "Anu"}
	r := recipient.Recipient{FirstName: "Jo"}

	got := p.Apply("[First Name] and [First Name]", r, "", "")
	if got != "Jo and Jo" {
		t.Errorf("Apply() = %q, want %q", got, "Jo and Jo")
	}
}

func TestApplySinglePassNoRecursion(t *testing.T) {
	p := &Personalizer{SenderName: "Anu"}
	r := recipient.Recipient{FirstName: "[Last Name]", LastName: "Li"}

	// A field containing a token literal is not substituted again.
	got := p.Apply("[First Name]", r, "", "")
	if got != "[Last Name]" {
		t.Errorf("Apply() = %q, want literal %q", got, "[Last Name]")
	}
}

func TestBodyAppendsPortfolio(t *testing.T) {
	p := &Personalizer{SenderName: "Anu", PortfolioURL: "https://example.dev/"}

	got := p.Body("Hello [First Name]", recipient.Recipient{FirstName: "Jo"}, "", "")
	if !strings.HasSuffix(got, "Portfolio: https://example.dev/") {
		t.Errorf("Body() = %q, want portfolio suffix", got)
	}
}

func TestEnsureSignature(t *testing.T) {
	p := &Personalizer{Signature: "Best regards,\nAnu"}

	got := p.EnsureSignature("Hello there.")
	if !strings.Contains(got, "Best regards,\nAnu") {
		t.Errorf("EnsureSignature() = %q, want signature appended", got)
	}

	already := "Hello.\n\nSincerely,\nAnu"
	if got := p.EnsureSignature(already); got != already {
		t.Errorf("EnsureSignature() modified a signed draft: %q", got)
	}
}
