package auth

import (
	"fmt"

	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/config"
)

// Directory holds the configured operator accounts and checks logins.
type Directory struct {
	operators map[string]Operator

	// dummyHash is verified for unknown usernames so the response time does
	// not reveal whether an account exists.
	dummyHash string
}

// NewDirectory validates the operators and builds a lookup directory.
func NewDirectory(operators []Operator) (*Directory, error) {
	dummy, err := HashPassword("fleetwatch-unknown-operator")
	if err != nil {
		return nil, err
	}

	d := &Directory{
		operators: make(map[string]Operator, len(operators)),
		dummyHash: dummy,
	}
	for _, op := range operators {
		if !IsValidUsername(op.Username) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, op.Username)
		}
		if !IsValidRole(op.Role) {
			return nil, fmt.Errorf("%w: %q for operator %s", ErrInvalidRole, op.Role, op.Username)
		}
		if _, err := decodePHC(op.PasswordHash); err != nil {
			return nil, fmt.Errorf("operator %s: %w", op.Username, err)
		}
		if _, exists := d.operators[op.Username]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOperator, op.Username)
		}
		d.operators[op.Username] = op
	}
	return d, nil
}

// DirectoryFromConfig builds a Directory from security.operators.
// An empty role defaults to viewer.
func DirectoryFromConfig(cfg config.SecurityConfig) (*Directory, error) {
	ops := make([]Operator, 0, len(cfg.Operators))
	for _, oc := range cfg.Operators {
		role := Role(oc.Role)
		if role == "" {
			role = RoleViewer
		}
		ops = append(ops, Operator{
			Username:     oc.Username,
			PasswordHash: oc.PasswordHash,
			Role:         role,
		})
	}
	return NewDirectory(ops)
}

// Authenticate checks a username/password pair and returns the operator.
// Every failure returns ErrInvalidCredentials.
func (d *Directory) Authenticate(username, password string) (Operator, error) {
	op, ok := d.operators[username]
	if !ok {
		_, _ = VerifyPassword(password, d.dummyHash) //nolint:errcheck // timing only
		return Operator{}, ErrInvalidCredentials
	}

	match, err := VerifyPassword(password, op.PasswordHash)
	if err != nil || !match {
		return Operator{}, ErrInvalidCredentials
	}
	return op, nil
}

// Len returns the number of configured operators.
func (d *Directory) Len() int {
	return len(d.operators)
}
