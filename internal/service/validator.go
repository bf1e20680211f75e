package service

import (
	"fmt"
	"strings"

	"github.com/smartcity/traffic-analyzer/internal/dataset"
	"github.com/smartcity/traffic-analyzer/internal/domain"
)

// MinRecords is the smallest dataset accepted for analysis
const MinRecords = 10

// Validate checks a dataset against the structural contract.
// Every rule is evaluated so the caller sees all problems at once;
// an empty dataset is the only case that stops early.
func Validate(t *dataset.Table) domain.ValidationResult {
	if t == nil || t.Len() == 0 {
		return domain.ValidationResult{Valid: false, Errors: []string{"CSV file is empty"}}
	}

	var errs []string

	var missing []string
	for _, col := range domain.RequiredColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")))
	}

	for _, col := range []string{domain.ColumnVehicleCount, domain.ColumnAvgSpeed} {
		if t.HasColumn(col) && !t.IsNumericColumn(col) {
			errs = append(errs, fmt.Sprintf("Column '%s' must be numeric", col))
		}
	}

	if t.Len() < MinRecords {
		errs = append(errs, fmt.Sprintf("CSV must contain at least %d records for analysis", MinRecords))
	}

	return domain.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
