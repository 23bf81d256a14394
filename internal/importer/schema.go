// v1
// internal/importer/schema.go
package importer

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const rosterSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["number", "firstName", "lastName"],
    "properties": {
      "number": {"type": "integer", "minimum": 1},
      "firstName": {"type": "string", "minLength": 1},
      "lastName": {"type": "string", "minLength": 1},
      "class": {"type": "string"},
      "machine": {"type": "string"},
      "team": {"type": "string"}
    },
    "additionalProperties": false
  }
}`

const timesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["number", "stageOrdinal", "elapsedSeconds"],
    "properties": {
      "number": {"type": "integer", "minimum": 1},
      "stageOrdinal": {"type": "integer", "minimum": 1},
      "elapsedSeconds": {"type": "number", "exclusiveMinimum": 0},
      "penaltySeconds": {"type": "number", "minimum": 0}
    },
    "additionalProperties": false
  }
}`

var (
	compiledRoster = jsonschema.MustCompileString("entrylist.schema.json", rosterSchema)
	compiledTimes  = jsonschema.MustCompileString("timelist.schema.json", timesSchema)
)

// ValidateRoster checks a raw entry-list document against the schema.
func ValidateRoster(raw []byte) error {
	return validate(compiledRoster, raw)
}

// ValidateTimes checks a raw time-list document against the schema.
func ValidateTimes(raw []byte) error {
	return validate(compiledTimes, raw)
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	return schema.Validate(doc)
}
