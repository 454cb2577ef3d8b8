package codec

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// collectionSchema describes the subset of Postman v2 the importer accepts.
// Items nest through $defs/item; a leaf must carry a request whose method
// is in the supported set and whose url is a string or has a raw form.
const collectionSchema = `{
  "type": "object",
  "required": ["info", "item"],
  "properties": {
    "info": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "minLength": 1}
      }
    },
    "item": {
      "type": "array",
      "items": {"$ref": "#/$defs/item"}
    }
  },
  "$defs": {
    "item": {
      "type": "object",
      "anyOf": [
        {"required": ["item"]},
        {"required": ["request"]}
      ],
      "properties": {
        "item": {
          "type": "array",
          "items": {"$ref": "#/$defs/item"}
        },
        "request": {"$ref": "#/$defs/request"}
      }
    },
    "request": {
      "type": "object",
      "required": ["method", "url"],
      "properties": {
        "method": {"enum": ["GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"]},
        "url": {
          "oneOf": [
            {"type": "string", "minLength": 1},
            {
              "type": "object",
              "required": ["raw"],
              "properties": {
                "raw": {"type": "string", "minLength": 1}
              }
            }
          ]
        },
        "header": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["key"],
            "properties": {
              "key": {"type": "string"},
              "value": {"type": "string"}
            }
          }
        },
        "body": {
          "type": ["object", "null"],
          "properties": {
            "raw": {"type": "string"}
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// schema compiles the embedded collection schema on first use.
func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("collection.json", strings.NewReader(collectionSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("collection.json")
	})
	return compiledSchema, schemaErr
}
