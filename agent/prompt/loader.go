package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed template/sales.txt
var salesRaw string

var salesTemplate = template.Must(template.New("sales").Parse(salesRaw))

// BusinessProfile is what the system prompt is personalised with.
type BusinessProfile struct {
	Name         string
	Personality  string
	BusinessType string
}

var businessKinds = map[string]string{
	"restaurante": "restaurant",
	"restaurant":  "restaurant",
	"taqueria":    "restaurant",
	"ferreteria":  "hardware",
	"hardware":    "hardware",
}

// Sales renders the system prompt of a business's sales assistant.
func Sales(profile BusinessProfile) (string, error) {
	personality := strings.TrimSpace(profile.Personality)
	if personality == "" {
		personality = "friendly, concise and helpful"
	}
	data := struct {
		Name        string
		Personality string
		Kind        string
	}{
		Name:        strings.TrimSpace(profile.Name),
		Personality: personality,
		Kind:        businessKinds[strings.ToLower(strings.TrimSpace(profile.BusinessType))],
	}

	var b strings.Builder
	if err := salesTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render sales prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
