// Package auth provides operator authentication and role checks for the
// FleetWatch API.
//
// It implements a 3-tier role model (viewer → user → admin) with:
//   - Argon2id password hashing for operator accounts in config.yaml
//   - Stateless HS256 JWT access tokens carrying the operator's role
//   - Static role-permission mapping (compile-time, no lookup)
//
// The role in a token is also the role the notification feed is projected
// for: only admin sees units outside the standard range.
package auth
