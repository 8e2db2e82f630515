package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"name":       "Ada",
		"department": "billing",
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"single placeholder", "Hi {{name}}!", "Hi Ada!"},
		{"multiple placeholders", "Hi {{name}}, welcome to {{department}}.", "Hi Ada, welcome to billing."},
		{"repeated placeholder", "{{name}} {{name}}", "Ada Ada"},
		{"unknown placeholder kept verbatim", "Your ticket {{ticket_id}} is open.", "Your ticket {{ticket_id}} is open."},
		{"mixed known and unknown", "Hi {{name}}, ref {{ref}}.", "Hi Ada, ref {{ref}}."},
		{"inner whitespace", "Hi {{ name }}!", "Hi Ada!"},
		{"no placeholders", "Thanks for reaching out.", "Thanks for reaching out."},
		{"empty template", "", ""},
		{"unbalanced braces untouched", "Hi {{name", "Hi {{name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, vars))
		})
	}
}

func TestRenderNilVars(t *testing.T) {
	assert.Equal(t, "Hi {{name}}!", Render("Hi {{name}}!", nil))
}

func TestRenderEmptyValue(t *testing.T) {
	got := Render("Hi {{name}}!", map[string]string{"name": ""})
	assert.Equal(t, "Hi !", got)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "department"},
		Placeholders("Hi {{name}}, {{department}} here. Bye {{name}}."))
	assert.Nil(t, Placeholders("no placeholders"))
}
