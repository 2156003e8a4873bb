package models

import (
	"fmt"
	"regexp"
	"strings"
)

var templateVarPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// EmailTemplate holds a reusable message body with {{variable}} placeholders.
// Templates are immutable and keyed by name in the orchestrator registry.
type EmailTemplate struct {
	Name      string   `json:"name"`
	Subject   string   `json:"subject"`
	BodyHTML  string   `json:"bodyHtml"`
	BodyText  string   `json:"bodyText"`
	Variables []string `json:"variables"`
}

// Render substitutes {{variable}} placeholders in subject and bodies.
// Unknown placeholders are left in place so a missing variable is visible in
// the produced message instead of silently vanishing.
func (t *EmailTemplate) Render(variables map[string]string) (subject, html, text string) {
	render := func(s string) string {
		return templateVarPattern.ReplaceAllStringFunc(s, func(match string) string {
			name := templateVarPattern.FindStringSubmatch(match)[1]
			if v, ok := variables[name]; ok {
				return v
			}
			return match
		})
	}
	return render(t.Subject), render(t.BodyHTML), render(t.BodyText)
}

// DeclaredVariables extracts the placeholder names found in the template.
func (t *EmailTemplate) DeclaredVariables() []string {
	seen := map[string]bool{}
	var names []string
	for _, s := range []string{t.Subject, t.BodyHTML, t.BodyText} {
		for _, m := range templateVarPattern.FindAllStringSubmatch(s, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

func (t *EmailTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required")
	}
	return nil
}
