package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/prestamos/deployer/internal/core/domain"
)

// Verifier opens a backup as a read-only SQLite database and inspects it.
type Verifier struct{}

// NewVerifier creates a verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify runs PRAGMA integrity_check and counts the rows of every user table.
func (v *Verifier) Verify(ctx context.Context, path string) (*domain.BackupVerification, error) {
	db, err := sqlx.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer db.Close()

	var checks []string
	if err := db.SelectContext(ctx, &checks, "PRAGMA integrity_check"); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}

	var tables []string
	err = db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	result := &domain.BackupVerification{
		Integrity: strings.Join(checks, "; "),
		Tables:    make(map[string]int64, len(tables)),
	}
	for _, table := range tables {
		var n int64
		if err := db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+quoteIdent(table)); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		result.Tables[table] = n
	}
	return result, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
