package migrate

import (
	"errors"
	"os"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, Up)
		if err == nil {
			t.Fatalf("Run with DSN %q should return error", dsn)
		}
		if err.Error() != "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL" {
			t.Errorf("error message = %q", err.Error())
		}
	}
}

func TestParseDirection(t *testing.T) {
	testCases := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"up", Up, false},
		{"down", Down, false},
		{"", "", true},
		{"UP", "", true},
		{"sideways", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDirection(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseDirection(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseDirection(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	err := Run("postgres://localhost/test", Direction("left"))
	if err == nil {
		t.Fatal("Run with invalid direction should return error")
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
	}{
		{"invalid format", "invalid-dsn"},
		{"missing driver", "://localhost/test"},
		{"spaces", "postgres://localhost with spaces/test"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Run(tc.dsn, Up); err == nil {
				t.Errorf("Run with invalid DSN %q should return error", tc.dsn)
			}
		})
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	if _, _, err := Version(""); err == nil {
		t.Fatal("Version with empty DSN should return error")
	}
}

func TestRun_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	if err := Run(dsn, Up); err != nil {
		t.Fatalf("second Run up should be a no-op, got %v", err)
	}
	v, dirty, err := Version(dsn)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v < 2 || dirty {
		t.Errorf("Version = %d dirty=%v, want >= 2 clean", v, dirty)
	}
	if errors.Is(err, ErrNoChange) {
		t.Error("Version should not surface ErrNoChange")
	}
}
