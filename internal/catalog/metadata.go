package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/go-playground/validator/v10"
)

var metaKeyValidate = validator.New()

// metaKeyTag constrains a metadata key to a non-empty string; used via
// validator.Var rather than validator.Struct since Metadata is a map,
// not a fixed struct shape.
const metaKeyTag = "required"

// ValidateMetadata walks a metadata document and rejects anything that
// is not a string key mapping to a JSON scalar, nested map, or slice
// thereof (spec.md §3 Node.metadata contract).
func ValidateMetadata(m Metadata) error {
	for k, v := range m {
		if err := metaKeyValidate.Var(k, metaKeyTag); err != nil {
			return &archiveerr.ValidationError{Field: "metadata key", Reason: "must not be empty"}
		}
		if err := validateMetadataValue(k, v); err != nil {
			return err
		}
	}
	return nil
}

func validateMetadataValue(path string, v interface{}) error {
	switch val := v.(type) {
	case nil, string, float64, bool, json.Number, int, int64:
		return nil
	case map[string]interface{}:
		for k, nested := range val {
			if err := validateMetadataValue(path+"."+k, nested); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for i, nested := range val {
			if err := validateMetadataValue(fmt.Sprintf("%s[%d]", path, i), nested); err != nil {
				return err
			}
		}
		return nil
	default:
		return &archiveerr.ValidationError{Field: path, Reason: fmt.Sprintf("unsupported metadata value type %T", v)}
	}
}

// MarshalMetadata serializes a validated Metadata document for storage.
func MarshalMetadata(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	if err := ValidateMetadata(m); err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", &archiveerr.ValidationError{Field: "metadata", Reason: err.Error()}
	}
	return string(b), nil
}

// UnmarshalMetadata parses a stored metadata document.
func UnmarshalMetadata(s string) (Metadata, error) {
	if s == "" {
		return Metadata{}, nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, &archiveerr.IOError{Op: "parse stored metadata", Err: err}
	}
	return m, nil
}
