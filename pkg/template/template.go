// Package template renders message and request templates against lead and
// execution data.
package template

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/leadflowhq/leadflow/pkg/models"
)

// Render executes a text/template with the given data.
func Render(input string, data map[string]any) (string, error) {
	tmpl, err := template.New("node").Option("missingkey=zero").Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var out strings.Builder

	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return out.String(), nil
}

// RenderWithLead renders a template with the standard lead/execution context:
// {{.lead.name}}, {{.lead.phone}}, {{.lead.fields.<name>}}, {{.vars.<name>}},
// {{.execution.id}}.
func RenderWithLead(input string, lead *models.Lead, execution *models.Execution) (string, error) {
	data := map[string]any{
		"lead": map[string]any{
			"id":       lead.ID,
			"name":     lead.Name,
			"phone":    lead.Phone,
			"email":    lead.Email,
			"stage_id": lead.StageID,
			"fields":   lead.Fields,
		},
	}

	if execution != nil {
		data["vars"] = execution.State.Variables
		data["execution"] = map[string]any{
			"id":      execution.ID,
			"flow_id": execution.FlowID,
		}
	}

	return Render(input, data)
}

// NeedsTemplating reports whether a string contains template expressions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}
