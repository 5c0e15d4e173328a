package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
	}{
		{"desarrollo", ModeDevelopment},
		{"dev", ModeDevelopment},
		{"DEV", ModeDevelopment},
		{"produccion", ModeProduction},
		{"PROD", ModeProduction},
		{" prod ", ModeProduction},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestParseMode_Unknown(t *testing.T) {
	for _, input := range []string{"staging", "development", "production", "producción", ""} {
		_, err := ParseMode(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestMode_NoCache(t *testing.T) {
	assert.False(t, ModeDevelopment.NoCache())
	assert.True(t, ModeProduction.NoCache())
}

// =============================================================================
// Teardown Tests
// =============================================================================

func TestTeardownResult_OK(t *testing.T) {
	assert.True(t, TornDown("dev").OK())
	assert.True(t, AlreadyAbsent("dev").OK())
	assert.False(t, TeardownError("dev", errors.New("boom")).OK())
}

func TestTeardownResult_Error(t *testing.T) {
	assert.NoError(t, TornDown("image").Error())
	assert.NoError(t, AlreadyAbsent("image").Error())

	cause := errors.New("permission denied")
	err := TeardownError("image", cause).Error()
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "image")

	assert.Error(t, TeardownResult{Target: "x", Outcome: TeardownFailed}.Error())
}

func TestTeardownOutcome_String(t *testing.T) {
	assert.Equal(t, "torn-down", TeardownTornDown.String())
	assert.Equal(t, "already-absent", TeardownAlreadyAbsent.String())
	assert.Equal(t, "failed", TeardownFailed.String())
}

// =============================================================================
// Backup Naming Tests
// =============================================================================

func TestBackupFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 2, 0, time.Local)
	assert.Equal(t, "backup-equipos-20240309-070502.db", BackupFileName("equipos", at))
}

func TestParseBackupFileName_RoundTrip(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local)
	prefix, parsed, ok := ParseBackupFileName(BackupFileName("equipos", at))
	require.True(t, ok)
	assert.Equal(t, "equipos", prefix)
	assert.True(t, at.Equal(parsed))
}

func TestParseBackupFileName_Rejects(t *testing.T) {
	for _, name := range []string{"equipos.db", "backup-equipos-2024.db", "backup--20240101-000000.txt"} {
		_, _, ok := ParseBackupFileName(name)
		assert.False(t, ok, name)
	}
}

func TestBackupVerification_Healthy(t *testing.T) {
	var nilVerification *BackupVerification
	assert.False(t, nilVerification.Healthy())
	assert.True(t, (&BackupVerification{Integrity: "ok"}).Healthy())
	assert.False(t, (&BackupVerification{Integrity: "row 3 missing from index"}).Healthy())
}

// =============================================================================
// Base URL Tests
// =============================================================================

func TestNormalizeBaseURL(t *testing.T) {
	got, err := NormalizeBaseURL("  https://example.org/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", got)
}

func TestNormalizeBaseURL_Errors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrBaseURLRequired},
		{"   ", ErrBaseURLRequired},
		{"example.org", ErrInvalidBaseURL},
		{"ftp://example.org", ErrInvalidBaseURL},
		{"https://", ErrInvalidBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := NormalizeBaseURL(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestMissingFileError(t *testing.T) {
	err := fmt.Errorf("preflight: %w", &MissingFileError{Path: "Dockerfile"})
	assert.ErrorIs(t, err, ErrRequiredFileMissing)

	var mfe *MissingFileError
	require.ErrorAs(t, err, &mfe)
	assert.Equal(t, "Dockerfile", mfe.Path)
	assert.Contains(t, err.Error(), "Dockerfile")
}

// =============================================================================
// Backup Prefix Tests
// =============================================================================

func TestSanitizePrefix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"equipos", "equipos"},
		{"Equipos", "equipos"},
		{"prestamos_2024", "prestamos_2024"},
		{"Prod DB", "prod-db"},
		{"../Prod DB!", "prod-db"},
		{"équipos", "quipos"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePrefix(tt.in))
		})
	}
}
