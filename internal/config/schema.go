package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON Schema the raw decoded config document must
// satisfy before mapstructure unmarshal. additionalProperties: false at
// every group catches typo'd keys (e.g. "pool_sise") that mapstructure
// would otherwise silently drop instead of erroring on.
const configSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "max_concurrent": {"type": "integer"},
    "checker": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "binary_path": {"type": "string"},
        "pool_size": {"type": "integer"},
        "max_type_depth": {"type": "integer"},
        "file_timeout_ms": {"type": "integer"},
        "max_memory_mb": {"type": "integer"},
        "flags": {"type": "array", "items": {"type": "string"}}
      }
    },
    "linter": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "binary_path": {"type": "string"},
        "config_path": {"type": "string"},
        "concurrency": {"type": "integer"},
        "file_timeout_ms": {"type": "integer"},
        "rules": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        }
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string"},
        "file": {"type": "string"},
        "max_file_size_mb": {"type": "integer"},
        "pretty_print": {"type": "boolean"}
      }
    },
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "max_entries": {"type": "integer"},
        "max_size_mb": {"type": "integer"},
        "ttl_seconds": {"type": "integer"}
      }
    },
    "watch": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "debounce_ms": {"type": "integer"}
      }
    },
    "inspector": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_trace_history": {"type": "integer"}
      }
    }
  }
}`

// validateDocument checks the raw decoded settings document (as produced by
// viper.AllSettings) against configSchema, catching nested-key typos that
// mapstructure would otherwise drop silently instead of rejecting.
func validateDocument(document map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	descriptions := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		descriptions = append(descriptions, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(descriptions, "; "))
}
