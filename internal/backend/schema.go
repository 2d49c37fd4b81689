package backend

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
)

var startSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "string"},
    "message": {"type": ["string", "null"]},
    "questions": {
      "type": ["array", "null"],
      "items": {
        "type": ["object", "null"],
        "properties": {
          "id": {"type": ["integer", "null"]},
          "category": {"type": ["string", "null"]},
          "question": {"type": ["string", "null"]}
        }
      }
    }
  }
}`)

var scoreSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": {"type": "string"},
    "message": {"type": ["string", "null"]},
    "report": {
      "type": ["object", "null"],
      "required": ["overall_score", "content", "fluency"],
      "properties": {
        "question_id": {"type": ["integer", "null"]},
        "transcript": {"type": "string"},
        "overall_score": {"type": "number"},
        "content": {
          "type": "object",
          "required": ["score"],
          "properties": {
            "score": {"type": "number"},
            "feedback": {"type": "string"}
          }
        },
        "fluency": {
          "type": "object",
          "required": ["score", "wpm"],
          "properties": {
            "score": {"type": "number"},
            "wpm": {"type": "number"},
            "word_count": {"type": "integer"},
            "duration_seconds": {"type": "number"},
            "filler_count": {"type": "integer"},
            "filler_rate": {"type": "number"},
            "feedback": {"type": "string"}
          }
        }
      }
    }
  }
}`)

// validate checks body against schema and returns the violations.
func validate(schema gojsonschema.JSONLoader, body []byte) ([]string, error) {
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		problems[i] = desc.String()
	}
	return problems, nil
}
