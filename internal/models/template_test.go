package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailTemplate_RenderSubstitutesVariables(t *testing.T) {
	template := &EmailTemplate{
		Subject:  "Hello {{name}}",
		BodyHTML: "<p>From {{sender_email}}</p>",
		BodyText: "From {{sender_email}} with {{ spaced }} placeholder",
	}

	subject, html, text := template.Render(map[string]string{
		"name":         "Alice",
		"sender_email": "a@example.com",
		"spaced":       "a padded",
	})

	assert.Equal(t, "Hello Alice", subject)
	assert.Equal(t, "<p>From a@example.com</p>", html)
	assert.Equal(t, "From a@example.com with a padded placeholder", text)
}

func TestEmailTemplate_UnknownPlaceholdersLeftInPlace(t *testing.T) {
	template := &EmailTemplate{Subject: "Hi {{missing}}"}

	subject, _, _ := template.Render(nil)

	assert.Equal(t, "Hi {{missing}}", subject)
}

func TestEmailTemplate_DeclaredVariables(t *testing.T) {
	template := &EmailTemplate{
		Subject:  "{{a}} and {{b}}",
		BodyText: "{{b}} again, plus {{c}}",
	}

	assert.ElementsMatch(t, []string{"a", "b", "c"}, template.DeclaredVariables())
}

func TestEmailTemplate_ValidateRequiresName(t *testing.T) {
	assert.Error(t, (&EmailTemplate{Name: "  "}).Validate())
	assert.NoError(t, (&EmailTemplate{Name: "warmup"}).Validate())
}
