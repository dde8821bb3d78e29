// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/civicdesk/correspondence-backend/internal/model"
)

// RenderTemplate substitutes {token} placeholders. Unknown tokens are left
// in place; empty values render as a neutral fallback so a half-filled
// constituent record never produces "Dear ,".
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "constituent"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// PersonalizationData builds the token set for one bulk-response recipient.
func PersonalizationData(c *model.Constituent, officeName, campaignSubject string) map[string]string {
	return map[string]string{
		"first_name":       c.FirstName,
		"last_name":        c.LastName,
		"full_name":        c.FullName(),
		"mp_name":          officeName,
		"campaign_subject": campaignSubject,
	}
}
