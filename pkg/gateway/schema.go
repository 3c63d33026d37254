package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// chatRequestSchema describes the POST /api/chat body. The type of
// "message" is left to the message validator so that every content rule
// is applied after rate limiting, in one place.
const chatRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"message": {}
	},
	"required": ["message"]
}`

var chatSchema = gojsonschema.NewStringLoader(chatRequestSchema)

const (
	msgInvalidJSON     = "Invalid JSON"
	msgInvalidBody     = "Request body must be a JSON object"
	msgMessageRequired = "Message is required"
)

// decodeChatRequest checks body against the request schema and returns the
// raw "message" value. The second return is a caller-facing reason when the
// body is unusable.
func decodeChatRequest(body []byte) (interface{}, string) {
	if len(body) == 0 {
		return nil, msgMessageRequired
	}

	result, err := gojsonschema.Validate(chatSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, msgInvalidJSON
	}
	if !result.Valid() {
		return nil, schemaReason(result.Errors())
	}

	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, msgInvalidJSON
	}
	return req["message"], ""
}

func schemaReason(errs []gojsonschema.ResultError) string {
	for _, e := range errs {
		switch e.Type() {
		case "required":
			return msgMessageRequired
		case "invalid_type":
			if e.Field() == "(root)" {
				return msgInvalidBody
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Sprintf("Invalid request: %s", errs[0].Description())
	}
	return msgInvalidBody
}
