package quotes

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const submissionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["email"],
  "properties": {
    "email": { "type": "string", "minLength": 3, "pattern": "@" },
    "nombre": { "type": "string" },
    "name": { "type": "string" },
    "telefono": { "type": "string" },
    "phone": { "type": "string" },
    "lineItems": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "qty"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "price": { "type": "number", "minimum": 0 },
          "qty": { "type": "integer", "minimum": 1 },
          "sourceId": { "type": ["string", "number"] }
        }
      }
    }
  }
}`

var submissionLoader = gojsonschema.NewStringLoader(submissionSchema)

// ValidationError lists every schema violation in a submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid quote: " + strings.Join(e.Problems, "; ")
}

// Validate checks a raw submission body against the submission schema.
func Validate(body []byte) error {
	res, err := gojsonschema.Validate(submissionLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &ValidationError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if res.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, e := range res.Errors() {
		ve.Problems = append(ve.Problems, e.String())
	}
	return ve
}
