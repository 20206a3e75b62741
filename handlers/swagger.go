package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the document API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docstore - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docstore", "version": "v0.1.0" },
  "components": {
    "parameters": {
      "db": { "name": "db", "in": "path", "required": true, "schema": { "type": "string" } },
      "coll": { "name": "coll", "in": "path", "required": true, "schema": { "type": "string" } },
      "id": { "name": "id", "in": "path", "required": true, "description": "24-hex ObjectId or any string", "schema": { "type": "string" } },
      "ifMatch": { "name": "If-Match", "in": "header", "required": false, "description": "etag of the version being modified", "schema": { "type": "string" } }
    },
    "responses": {
      "notFound": { "description": "collection or document not found" },
      "gone": { "description": "applied; the supplied etag matched the previous version" },
      "conflict": { "description": "etag mismatch; the previous version was restored" }
    }
  },
  "paths": {
    "/api/v1/{db}/{coll}": {
      "parameters": [ { "$ref": "#/components/parameters/db" }, { "$ref": "#/components/parameters/coll" } ],
      "post": {
        "summary": "Create a document with a generated id",
        "requestBody": { "content": { "application/json": { "schema": { "type": "object" } } } },
        "responses": { "201": { "description": "created; Location and ETag set" }, "400": { "description": "body is not a JSON object" }, "404": { "$ref": "#/components/responses/notFound" } }
      }
    },
    "/api/v1/{db}/{coll}/{id}": {
      "parameters": [ { "$ref": "#/components/parameters/db" }, { "$ref": "#/components/parameters/coll" }, { "$ref": "#/components/parameters/id" } ],
      "get": {
        "summary": "Read a document",
        "parameters": [ { "name": "If-None-Match", "in": "header", "required": false, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "document as relaxed Extended JSON" }, "304": { "description": "etag unchanged" }, "404": { "$ref": "#/components/responses/notFound" } }
      },
      "put": {
        "summary": "Replace or create a document",
        "parameters": [ { "$ref": "#/components/parameters/ifMatch" } ],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object" } } } },
        "responses": { "200": { "description": "updated" }, "201": { "description": "created" }, "404": { "$ref": "#/components/responses/notFound" }, "410": { "$ref": "#/components/responses/gone" }, "412": { "$ref": "#/components/responses/conflict" } }
      },
      "patch": {
        "summary": "Set fields on an existing document",
        "parameters": [ { "$ref": "#/components/parameters/ifMatch" } ],
        "requestBody": { "content": { "application/json": { "schema": { "type": "object" } } } },
        "responses": { "200": { "description": "updated" }, "404": { "$ref": "#/components/responses/notFound" }, "410": { "$ref": "#/components/responses/gone" }, "412": { "$ref": "#/components/responses/conflict" } }
      },
      "delete": {
        "summary": "Remove a document",
        "parameters": [ { "$ref": "#/components/parameters/ifMatch" } ],
        "responses": { "200": { "description": "removed" }, "404": { "$ref": "#/components/responses/notFound" }, "410": { "$ref": "#/components/responses/gone" }, "412": { "$ref": "#/components/responses/conflict" } }
      }
    },
    "/_logout": {
      "post": { "summary": "Revoke the bearer token", "responses": { "204": { "description": "revoked" }, "401": { "description": "missing or invalid token" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition format" } } } }
  }
}`
