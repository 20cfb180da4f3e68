package variation

import (
	"fmt"
	"math/rand"
)

// prefixChance is the probability a subject line receives a prefix.
const prefixChance = 0.3

var subjectPrefixes = []string{"Re: ", "Regarding: ", ""}

// subjectBank returns the fixed bank of subject templates interpolated
// with role and company. Recipient tokens are left for the personalizer.
func subjectBank(role, company string) []string {
	return []string{
		fmt.Sprintf("Interest in %s role at %s", role, company),
		fmt.Sprintf("Application for %s position at %s", role, company),
		fmt.Sprintf("%s opportunity at %s", role, company),
		fmt.Sprintf("Exploring %s role at %s", role, company),
		fmt.Sprintf("%s position inquiry - %s", role, company),
		fmt.Sprintf("Passionate about %s role at %s", role, company),
		fmt.Sprintf("%s opportunity - [First Name] [Last Name]", role),
		fmt.Sprintf("Re: %s position at %s", role, company),
		fmt.Sprintf("%s %s role - Application", company, role),
		fmt.Sprintf("Interested in joining %s as %s", company, role),
	}
}

// SubjectGenerator produces subject-line variations for a role at a
// company.
type SubjectGenerator struct {
	rng *rand.Rand
}

// NewSubjectGenerator creates a generator backed by the given source.
func NewSubjectGenerator(rng *rand.Rand) *SubjectGenerator {
	return &SubjectGenerator{rng: rng}
}

// Generate returns exactly count subject lines, cycling through the
// template bank when count exceeds its size. Each line independently
// may receive a random prefix.
func (g *SubjectGenerator) Generate(role, company string, count int) []string {
	bank := subjectBank(role, company)

	subjects := make([]string, 0, count)
	for i := 0; i < count; i++ {
		subject := bank[i%len(bank)]
		if g.rng.Float64() < prefixChance {
			subject = subjectPrefixes[g.rng.Intn(len(subjectPrefixes))] + subject
		}
		subjects = append(subjects, subject)
	}
	return subjects
}
