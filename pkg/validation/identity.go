// Copyright (C) 2025 Scoutline (oss@scoutline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical
// operations.
//
// Validators here guard values that end up in remote store routes, file
// paths, or cache keys. Failing fast on malformed input keeps upstream
// bugs from being silently shipped downstream and rejected there.
package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidateIdentityToken checks that a token is a well-formed, externally
// issued profile identifier (RFC 4122 UUID).
//
// A malformed token indicates a bug upstream: identities are asserted
// valid before any mutation is invoked, so this must error loudly rather
// than let a bad token reach the remote store.
//
// Example:
//
//	if err := validation.ValidateIdentityToken(tok); err != nil {
//	    return fmt.Errorf("refusing remote write: %w", err)
//	}
func ValidateIdentityToken(token string) error {
	if token == "" {
		return fmt.Errorf("identity token cannot be empty")
	}
	if _, err := uuid.Parse(token); err != nil {
		return fmt.Errorf("invalid identity token %q: %w", token, err)
	}
	return nil
}

// SanitizeIdentityToken normalizes and validates an identity token.
// Returns the canonical lowercase form if valid.
func SanitizeIdentityToken(token string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if err := ValidateIdentityToken(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
