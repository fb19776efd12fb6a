// Package docs holds the generated OpenAPI description served by the
// swagger build tag. Regenerate with `make swagger-gen`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "mlxd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/models": {
            "get": {
                "produces": ["application/json"],
                "summary": "List converted model artifacts",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/convert": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Convert a Hugging Face model to a local MLX artifact",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"},
                    "409": {"description": "Conflict"},
                    "429": {"description": "Too Many Requests"},
                    "507": {"description": "Insufficient Storage"}
                }
            }
        },
        "/api/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "summary": "Generate text from a converted model, streamed as NDJSON",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"},
                    "429": {"description": "Too Many Requests"}
                }
            }
        },
        "/api/models/{name}/archive": {
            "get": {
                "produces": ["application/zip"],
                "summary": "Download a converted model as a zip archive",
                "parameters": [
                    {"name": "name", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/api/models/import": {
            "post": {
                "consumes": ["multipart/form-data", "application/zip"],
                "produces": ["application/json"],
                "summary": "Import a model from a zip archive",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/api/prompts": {
            "get": {
                "produces": ["application/json"],
                "summary": "List saved prompts",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/runtimes": {
            "delete": {
                "produces": ["application/json"],
                "summary": "Stop all running inference runtimes",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Daemon status",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "mlxd API",
	Description:      "HTTP API for local MLX model conversion and text generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
