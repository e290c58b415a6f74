package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildDatasetFilePath places a seed dataset file under a stable layout:
// datasets/<table>/date=YYYY-MM-DD/<table>-<sequence>.parquet.
func BuildDatasetFilePath(tableName string, loadedAt time.Time, sequence int) (string, error) {
	if err := ValidatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}

	ts := loadedAt.UTC()
	return path.Join(
		"datasets",
		tableName,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%05d.parquet", tableName, sequence),
	), nil
}

func ValidatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
