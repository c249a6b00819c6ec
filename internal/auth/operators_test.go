package auth

import (
	"errors"
	"testing"

	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/config"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return h
}

func TestDirectory_Authenticate(t *testing.T) {
	dir, err := NewDirectory([]Operator{
		{Username: "alice", PasswordHash: mustHash(t, "alice-pass"), Role: RoleAdmin},
		{Username: "bob", PasswordHash: mustHash(t, "bob-pass"), Role: RoleViewer},
	})
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	if dir.Len() != 2 {
		t.Errorf("Len() = %d, want 2", dir.Len())
	}

	op, err := dir.Authenticate("alice", "alice-pass")
	if err != nil {
		t.Fatalf("Authenticate(alice) error = %v", err)
	}
	if op.Role != RoleAdmin || op.Username != "alice" {
		t.Errorf("Authenticate(alice) = %+v", op)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "bob", "alice-pass"},
		{"unknown user", "carol", "whatever"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dir.Authenticate(tt.username, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestNewDirectory_Validation(t *testing.T) {
	good := mustHash(t, "pw")

	tests := []struct {
		name    string
		ops     []Operator
		wantErr error
	}{
		{"bad username", []Operator{{Username: "a b", PasswordHash: good, Role: RoleUser}}, ErrInvalidUsername},
		{"bad role", []Operator{{Username: "a", PasswordHash: good, Role: "owner"}}, ErrInvalidRole},
		{"bad hash", []Operator{{Username: "a", PasswordHash: "plaintext", Role: RoleUser}}, ErrMalformedHash},
		{"duplicate", []Operator{
			{Username: "a", PasswordHash: good, Role: RoleUser},
			{Username: "a", PasswordHash: good, Role: RoleAdmin},
		}, ErrDuplicateOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDirectory(tt.ops); !errors.Is(err, tt.wantErr) {
				t.Errorf("NewDirectory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDirectoryFromConfig_DefaultsRole(t *testing.T) {
	dir, err := DirectoryFromConfig(config.SecurityConfig{
		Operators: []config.OperatorConfig{
			{Username: "night-shift", PasswordHash: mustHash(t, "pw")},
		},
	})
	if err != nil {
		t.Fatalf("DirectoryFromConfig() error = %v", err)
	}

	op, err := dir.Authenticate("night-shift", "pw")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if op.Role != RoleViewer {
		t.Errorf("Role = %q, want viewer default", op.Role)
	}
}
