package retrieval

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrInvalidFilter indicates a query filter that failed allowlist or type
// validation. The message names the offending key.
var ErrInvalidFilter = errors.New("invalid query filter")

// Allowed top-level filter keys. Fixed at process start; anything else is
// rejected before the filter can reach a store query builder.
const (
	filterKeyDocumentIDs = "documentIds"
	filterKeyMetadata    = "metadata"
)

var allowedFilterKeys = map[string]bool{
	filterKeyDocumentIDs: true,
	filterKeyMetadata:    true,
}

// ValidateFilter checks a caller-supplied raw filter against the key
// allowlist and per-key value types, then converts it to the store's
// filter shape. A nil filter is valid and returns nil.
//
// Every check runs before any key is used: a filter that fails here never
// touches the store.
func ValidateFilter(raw map[string]interface{}) (*vectorstore.QueryFilter, error) {
	if raw == nil {
		return nil, nil
	}

	for key := range raw {
		if !allowedFilterKeys[key] {
			return nil, fmt.Errorf("%w: key %q is not allowed (allowed: %s, %s)",
				ErrInvalidFilter, key, filterKeyDocumentIDs, filterKeyMetadata)
		}
	}

	filter := &vectorstore.QueryFilter{}

	if raw, ok := raw[filterKeyDocumentIDs]; ok {
		ids, err := stringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q %v", ErrInvalidFilter, filterKeyDocumentIDs, err)
		}
		filter.DocumentIDs = ids
	}

	if raw, ok := raw[filterKeyMetadata]; ok {
		switch meta := raw.(type) {
		case map[string]interface{}:
			for key, value := range meta {
				if _, ok := value.(string); !ok {
					return nil, fmt.Errorf("%w: %q value for key %q must be a string, got %T",
						ErrInvalidFilter, filterKeyMetadata, key, value)
				}
			}
			filter.Metadata = meta
		case nil:
			return nil, fmt.Errorf("%w: %q must not be null", ErrInvalidFilter, filterKeyMetadata)
		default:
			return nil, fmt.Errorf("%w: %q must be an object, got %T", ErrInvalidFilter, filterKeyMetadata, raw)
		}
	}

	if len(filter.DocumentIDs) == 0 && filter.Metadata == nil {
		return nil, nil
	}
	return filter, nil
}

// stringSlice accepts []string or a decoded-JSON []interface{} whose
// elements are all strings.
func stringSlice(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		ids := make([]string, len(v))
		for i, elem := range v {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("element %d must be a string, got %T", i, elem)
			}
			ids[i] = s
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("must be an array of strings, got %T", raw)
	}
}
