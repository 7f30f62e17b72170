package message

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// attachmentSchema/actionPayloadSchemas enforce the shape behind
// attachmentTypes/actionTypes' bare enum whitelist, grounded on
// modules/jsonschema's compiler/Schema split (service.go): each schema
// is decoded with the teacher's own jsonschema.UnmarshalJSON, then
// registered on an in-memory compiler resource instead of the
// teacher's file/URL-sourced schemas, since these whitelists never
// leave the binary.
var (
	attachmentSchema     *jsonschema.Schema
	actionPayloadSchemas map[ActionType]*jsonschema.Schema
)

func init() {
	attachmentSchema = mustCompileSchema("msghub://message/attachment.json", attachmentSchemaJSON)

	actionPayloadSchemas = make(map[ActionType]*jsonschema.Schema, len(actionPayloadSchemaJSON))
	for at, doc := range actionPayloadSchemaJSON {
		actionPayloadSchemas[at] = mustCompileSchema("msghub://message/action-"+string(at)+".json", doc)
	}
}

func mustCompileSchema(id, schemaJSON string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("message: malformed embedded schema %s: %v", id, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(id, doc); err != nil {
		panic(fmt.Sprintf("message: invalid embedded schema %s: %v", id, err))
	}
	sch, err := c.Compile(id)
	if err != nil {
		panic(fmt.Sprintf("message: schema compile failed %s: %v", id, err))
	}
	return sch
}

const attachmentSchemaJSON = `{
	"type": "object",
	"properties": {
		"type":  {"enum": ["image", "link", "file"]},
		"value": {"type": "string", "minLength": 1}
	},
	"required": ["type", "value"]
}`

// actorOnlyPayloadJSON covers actions whose payload, if present,
// carries nothing beyond who performed it.
const actorOnlyPayloadJSON = `{
	"type": "object",
	"properties": {
		"actor": {"type": "string"}
	},
	"additionalProperties": false
}`

const snoozePayloadJSON = `{
	"type": "object",
	"properties": {
		"actor": {"type": "string"},
		"until": {"type": "integer"},
		"forMs": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

// customPayloadJSON leaves ActionCustom's payload shape to the plugin
// that defines it; only the JSON-object envelope is enforced.
const customPayloadJSON = `{"type": "object"}`

var actionPayloadSchemaJSON = map[ActionType]string{
	ActionAck:     actorOnlyPayloadJSON,
	ActionSnooze:  snoozePayloadJSON,
	ActionClose:   actorOnlyPayloadJSON,
	ActionDismiss: actorOnlyPayloadJSON,
	ActionCustom:  customPayloadJSON,
}

// validateAttachment checks a raw {type,value} attachment object
// against attachmentSchema. The enum whitelist is re-asserted inside
// the schema itself, so a schema failure and a plain map lookup miss
// report through the same ErrInvalidAttachment.
func validateAttachment(m map[string]any) error {
	if err := attachmentSchema.Validate(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAttachment, err)
	}
	return nil
}

// validateActionPayload checks payload (nil means "not supplied")
// against the schema registered for at. at is assumed already checked
// against actionTypes.
func validateActionPayload(at ActionType, payload map[string]any) error {
	if payload == nil {
		return nil
	}
	sch, ok := actionPayloadSchemas[at]
	if !ok {
		return nil
	}
	if err := sch.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidAction, at, err)
	}
	return nil
}
