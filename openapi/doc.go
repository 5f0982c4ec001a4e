// Package openapi is the OpenAPI 3.0 and 3.1 object model together with a
// reflection-based schema generator, document codecs and schema
// validation.
//
// See: https://spec.openapis.org/oas/v3.1.0
// See: https://spec.openapis.org/oas/v3.0.3
// See: https://json-schema.org/draft/2020-12/json-schema-core
//
// # Versions
//
// Every schema-producing call takes a Version. Schemas are generated in the
// 3.1 form (JSON Schema Draft 2020-12) and rewritten by Version.Adapt for
// 3.0:
//
//	3.1                                  3.0
//	type: [string, "null"]               type: string, nullable: true
//	anyOf: [$ref, {type: "null"}]        allOf: [$ref], nullable: true
//	exclusiveMinimum: 0                  minimum: 0, exclusiveMinimum: true
//	const: x                             enum: [x]
//	examples: [a, b]                     example: a
//
// Version.Restrict removes document fields 3.0 does not have (webhooks,
// info.summary, license.identifier, jsonSchemaDialect,
// components.pathItems).
//
// # Schema Generation
//
// SchemaGenerator maps Go types to schemas. Named struct types become
// components referenced by $ref; everything else is inlined:
//
//	gen := openapi.NewSchemaGenerator(openapi.Version31)
//	ref := gen.Generate(Pet{})    // {"$ref": "#/components/schemas/Pet"}
//	body := gen.Schemas()["Pet"]  // the object schema
//
// Describe returns the same information split the way route documentation
// needs it: the type's own named schema, the schemas it references and an
// inline form.
//
// Type mapping:
//
//	bool                  boolean
//	int, int8..int32      integer (int32)
//	int64                 integer (int64)
//	uint..uint64          integer, minimum 0
//	float32, float64      number (float, double)
//	string                string
//	[]byte                string (byte)
//	time.Time             string (date-time)
//	uuid.UUID             string (uuid)
//	multipart.FileHeader  string (binary)
//	TextMarshaler         string
//	*T                    T or null
//	[]T, [N]T             array
//	map[string]T          object with additionalProperties
//	any                   {}
//
// Field names and optionality follow the json tag (omitempty and omitzero
// make a field optional, ",string" encodes numbers as strings). The openapi
// tag adds constraints:
//
//	type Pet struct {
//	    ID   int64  `json:"id" openapi:"readOnly,description=Pet id"`
//	    Name string `json:"name" openapi:"minLength=1,maxLength=64,example=Rex"`
//	    Kind string `json:"kind" openapi:"enum=cat|dog|bird"`
//	}
//
// Supported keys: description, example, format, minimum, maximum,
// exclusiveMinimum, exclusiveMaximum, minLength, maxLength, pattern, enum,
// deprecated, readOnly, writeOnly, title, multipleOf, minItems, maxItems,
// uniqueItems, minProperties, maxProperties, const.
//
// Types with the same name in different packages are told apart by a
// package prefix ("ApiUser"), then a numeric suffix. Generic instantiations
// are flattened: Page[Pet] is "PagePet", Page[[]Pet] is "PagePetList".
//
// # Hooks
//
// Exampler sets a component example. SchemaProvider replaces reflection for
// a type; when it returns an error the type is logged and left without a
// schema instead of failing the document.
//
// # Components
//
// MergeComponents flattens fragments into one registry. Later fragments win
// on a name collision; in strict mode a collision with a different body is
// an ErrComponentCollision.
//
// # Codecs
//
// Document.JSON and Document.YAML encode a document; ParseJSON and
// ParseYAML decode one. YAML is produced from the JSON encoding so both
// carry the same keys.
package openapi
