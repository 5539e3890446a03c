package contract

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/greengate/pkg/models"
)

// normalizeChecks turns the raw check list into runnable checks. Entries that
// are not objects or have no command are dropped. A missing name becomes
// check-<n>, where n is the 1-based position in the raw list.
func normalizeChecks(raw any) []models.Check {
	list := asList(raw)
	checks := make([]models.Check, 0, len(list))
	for i, entry := range list {
		m := asMap(entry)
		if m == nil {
			continue
		}
		command := strings.TrimSpace(stringify(m["command"]))
		if command == "" {
			continue
		}
		name := strings.TrimSpace(stringify(m["name"]))
		if name == "" {
			name = fmt.Sprintf("check-%d", i+1)
		}
		condition := strings.TrimSpace(stringify(m["pass_condition"]))
		if condition == "" {
			condition = string(models.PassExitCodeZero)
		}
		checks = append(checks, models.Check{
			Name:          name,
			Command:       command,
			PassCondition: models.PassCondition(condition),
		})
	}
	return checks
}
