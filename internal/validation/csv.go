package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

// ReconcileFromCSV is the fallback detail path: it downloads the provider's
// annotated CSV for a completed batch and stores the same normalized rows
// the paginated JSON path would. Aggregate counts and the completed
// transition must already have been applied via Reconcile.
func (r *Reconciler) ReconcileFromCSV(ctx context.Context, listID, csvURL string) (int, error) {
	data, err := r.provider.DownloadCSV(ctx, csvURL)
	if err != nil {
		return 0, fmt.Errorf("download annotated CSV: %w", err)
	}

	results, err := parseAnnotatedCSV(listID, data)
	if err != nil {
		return 0, err
	}
	if err := r.store.InsertResults(ctx, results); err != nil {
		return 0, fmt.Errorf("store CSV results: %w", err)
	}

	r.logger.Info("annotated CSV reconciled",
		logger.String("list_id", listID),
		logger.Int("results_stored", len(results)))

	return len(results), nil
}

// parseAnnotatedCSV turns an annotated CSV payload into normalized result
// rows. The header row locates the email and state columns by substring so
// provider header renames ("Email Address", "Verification Result") keep
// working. Rows missing either column are skipped.
func parseAnnotatedCSV(listID, data string) ([]domain.ValidationResult, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("annotated CSV is empty")
	}

	header := splitCSVLine(lines[0])
	emailCol := findColumn(header, "email", "address")
	stateCol := findColumn(header, "state", "result")
	if emailCol < 0 || stateCol < 0 {
		return nil, fmt.Errorf("annotated CSV header missing email or state column: %q", lines[0])
	}
	subStateCol := findColumn(header, "sub_state", "sub state", "substate")

	results := make([]domain.ValidationResult, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitCSVLine(line)
		if emailCol >= len(fields) || stateCol >= len(fields) {
			continue
		}

		email := strings.ToLower(strings.TrimSpace(fields[emailCol]))
		if email == "" {
			continue
		}
		state := fields[stateCol]
		subState := ""
		if subStateCol >= 0 && subStateCol < len(fields) {
			subState = fields[subStateCol]
		}

		results = append(results, resultFromRecord(listID, email, state, subState))
	}
	return results, nil
}

// findColumn returns the index of the first header cell containing any of
// the given substrings, case-insensitively, or -1.
func findColumn(header []string, substrings ...string) int {
	for i, cell := range header {
		lower := strings.ToLower(cell)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return i
			}
		}
	}
	return -1
}

// splitCSVLine splits one CSV line into fields, honoring double-quoted
// fields with embedded commas and doubled-quote escapes.
func splitCSVLine(line string) []string {
	fields := make([]string, 0, 8)
	var field strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(field.String()))
	return fields
}
