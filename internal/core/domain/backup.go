package domain

import (
	"fmt"
	"regexp"
	"time"
)

// BackupTimeLayout is the timestamp layout embedded in backup file names.
const BackupTimeLayout = "20060102-150405"

var backupNamePattern = regexp.MustCompile(`^backup-(.+)-(\d{8}-\d{6})\.db$`)

// BackupSource tells where the database copy was taken from.
type BackupSource string

const (
	BackupSourceContainer BackupSource = "container"
	BackupSourceLocal     BackupSource = "local"
)

// BackupArtifact describes a backup file that has been written.
type BackupArtifact struct {
	Path         string
	Source       BackupSource
	Size         int64
	CreatedAt    time.Time
	Verification *BackupVerification
}

// BackupVerification is the result of opening a backup as a SQLite database.
type BackupVerification struct {
	Integrity string
	Tables    map[string]int64
}

// Healthy reports whether SQLite's integrity check passed.
func (v *BackupVerification) Healthy() bool {
	return v != nil && v.Integrity == "ok"
}

// BackupFileName returns backup-<prefix>-<YYYYMMDD-HHMMSS>.db for t.
func BackupFileName(prefix string, t time.Time) string {
	return fmt.Sprintf("backup-%s-%s.db", prefix, t.Format(BackupTimeLayout))
}

// ParseBackupFileName extracts the prefix and timestamp from a backup file name.
func ParseBackupFileName(name string) (prefix string, at time.Time, ok bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	at, err := time.ParseInLocation(BackupTimeLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], at, true
}
