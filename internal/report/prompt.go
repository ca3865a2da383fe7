package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/exitschool/offmarket/internal/model"
)

var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Substitute replaces {{name}} tokens with their value in vars. Tokens with
// no matching variable are left as written.
func Substitute(text string, vars Vars) string {
	return varPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := varPattern.FindStringSubmatch(tok)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})
}

// companyFacts lists the context lines given to the model, in order.
var companyFacts = []struct {
	label string
	key   string
}{
	{"Company name", "company_name"},
	{"Industry", "industry"},
	{"Location", "location"},
	{"Address", "address"},
	{"Website", "website"},
	{"Phone", "phone"},
	{"Google rating", "rating"},
	{"Review count", "review_count"},
	{"Owner / key contact", "owner_name"},
	{"Owner email", "owner_email"},
	{"Owner phone", "owner_phone"},
	{"Employees", "employee_count"},
	{"Annual revenue", "revenue"},
	{"Data confidence", "confidence"},
}

// BuildPrompts returns the substituted system prompt and the user prompt
// listing the numbered section instructions for tier.
func BuildPrompts(tpl model.PromptTemplate, tier model.Tier, vars Vars) (system, user string) {
	system = Substitute(tpl.SystemPrompt, vars)

	var b strings.Builder
	fmt.Fprintf(&b, "Prepare a %s report dated %s.\n\n", tier.Label(), vars["date"])
	b.WriteString("Company data:\n")
	for _, f := range companyFacts {
		fmt.Fprintf(&b, "- %s: %s\n", f.label, vars[f.key])
	}

	b.WriteString("\nWrite the following sections:\n")
	required := tier.RequiredSections()
	for i, s := range required {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, strings.ToUpper(s.Title()), Substitute(tpl.Instructions[s], vars))
	}
	optional := tier.OptionalSections()
	for i, s := range optional {
		fmt.Fprintf(&b, "%d. %s (optional): Add if you have relevant insight.\n", len(required)+i+1, strings.ToUpper(s.Title()))
	}

	keys := make([]string, 0, len(required)+len(optional))
	for _, s := range append(required, optional...) {
		keys = append(keys, string(s))
	}
	fmt.Fprintf(&b, "\nRespond with a single JSON object with the keys %s. "+
		"Each value is the plain-text body of that section, without the heading.\n",
		strings.Join(keys, ", "))

	return system, b.String()
}
