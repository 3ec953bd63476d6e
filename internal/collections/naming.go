// Package collections derives vector collection names from tenant and
// project identifiers.
//
// Collection names follow the format: <tenant>_<project>_<hash>
// Tenant and project components are sanitized to the character set every
// store backend accepts (lowercase letters, digits, underscores) and
// truncated; the hash suffix is computed over the raw identifiers so
// distinct scopes never collide after sanitization.
//
// Example:
//
//	name, err := collections.GenerateName("Acme Corp", "docs-v2")
//	// Result: "acme_corp_docs_v2_9f2c81d4"
package collections

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTenantID indicates an empty tenant ID.
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrInvalidProjectID indicates an empty project ID.
	ErrInvalidProjectID = errors.New("invalid project ID")
)

// maxComponentLen bounds each sanitized component so the full name stays
// inside the 64-character collection name limit.
const maxComponentLen = 20

// GenerateName derives the collection name for a tenant/project scope.
// Deterministic: the same identifiers always produce the same name.
func GenerateName(tenantID, projectID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant ID required", ErrInvalidTenantID)
	}
	if projectID == "" {
		return "", fmt.Errorf("%w: project ID required", ErrInvalidProjectID)
	}

	// Hash the raw pair before sanitization so "a-b"/"c" and "a"/"b-c"
	// cannot land on the same name.
	sum := sha256.Sum256([]byte(tenantID + "\x00" + projectID))
	suffix := hex.EncodeToString(sum[:4])

	return fmt.Sprintf("%s_%s_%s", sanitizeComponent(tenantID), sanitizeComponent(projectID), suffix), nil
}

// sanitizeComponent lowercases an identifier and maps everything outside
// [a-z0-9] to underscores, truncating to maxComponentLen.
func sanitizeComponent(id string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
		if sb.Len() >= maxComponentLen {
			break
		}
	}
	if sb.Len() == 0 {
		return "x"
	}
	return sb.String()
}
