package tenant

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateDatabaseStmt(t *testing.T) {
	stmt, err := CreateDatabaseStmt("Jhn_Lpez99_123456")
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	want := "CREATE DATABASE IF NOT EXISTS `Jhn_Lpez99_123456`"
	if stmt != want {
		t.Errorf("stmt = %q, want %q", stmt, want)
	}
}

func TestCreateDatabaseStmtRejectsInvalidName(t *testing.T) {
	for _, name := range []string{"", "con-guion", "con espacio", "drop`injection", strings.Repeat("a", 65)} {
		if _, err := CreateDatabaseStmt(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateDatabaseStmt(%q): error = %v, want ErrInvalidName", name, err)
		}
	}
}
