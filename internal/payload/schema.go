package payload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPayload is returned when a decrypted document does not match
// the expected shape.
var ErrInvalidPayload = errors.New("invalid payload")

const metaSchema = `{
	"type": "object",
	"required": ["appVersion", "exportTimestamp", "scope", "checksum"],
	"properties": {
		"appVersion": {"type": "string"},
		"exportTimestamp": {"type": "string", "format": "date-time"},
		"exportOrigin": {"type": "string"},
		"scope": {"enum": ["full", "sync", "images"]},
		"checksum": {"type": "string"}
	}
}`

var vaultSchema = mustCompile(`{
	"type": "object",
	"required": ["meta", "data"],
	"properties": {
		"meta": ` + metaSchema + `,
		"data": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`)

var imageSchema = mustCompile(`{
	"type": "object",
	"required": ["meta", "records"],
	"properties": {
		"meta": ` + metaSchema + `,
		"records": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["uuid", "cachedAt", "size"],
				"properties": {
					"uuid": {"type": "string", "minLength": 1},
					"obverse": {"type": "string"},
					"obverseType": {"type": "string"},
					"reverse": {"type": "string"},
					"reverseType": {"type": "string"},
					"cachedAt": {"type": "integer"},
					"size": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`)

var manifestSchema = mustCompile(`{
	"type": "object",
	"required": ["version", "deviceId", "vaultName", "scope", "exportTimestamp"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"deviceId": {"type": "string"},
		"vaultName": {"type": "string", "minLength": 1},
		"scope": {"enum": ["full", "sync"]},
		"checksum": {"type": "string"},
		"size": {"type": "integer", "minimum": 0},
		"exportTimestamp": {"type": "string", "format": "date-time"},
		"imagesName": {"type": "string"}
	}
}`)

func mustCompile(definition string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(definition))
	if err != nil {
		panic(fmt.Sprintf("payload: invalid schema: %v", err))
	}
	return schema
}

func validate(schema *gojsonschema.Schema, document []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.Field()+": "+e.Description())
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
}
