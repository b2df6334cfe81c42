// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/api/v1/bookings": {
            "get": {
                "summary": "List the caller's bookings",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "comma separated statuses"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "bookings"}}
            },
            "post": {
                "summary": "Request a booking (client)",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBooking"}}],
                "responses": {"201": {"description": "created"}, "400": {"description": "validation_error"}}
            }
        },
        "/api/v1/bookings/{id}": {
            "get": {
                "summary": "Get a booking",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "booking"}, "403": {"description": "forbidden"}, "404": {"description": "not_found"}}
            }
        },
        "/api/v1/bookings/{id}/transaction": {
            "get": {
                "summary": "Get the booking's payment record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "transaction"}}
            }
        },
        "/api/v1/bookings/{id}/{action}": {
            "post": {
                "summary": "Move the booking through its lifecycle",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "action", "in": "path", "required": true, "type": "string",
                     "enum": ["accept", "decline", "confirm", "start", "complete", "cancel", "no-show"]},
                    {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/TransitionBody"}}
                ],
                "responses": {
                    "200": {"description": "booking after the move"},
                    "402": {"description": "payment_error"},
                    "409": {"description": "illegal_transition or concurrent_modification, with the current booking"}
                }
            }
        },
        "/api/v1/bookings/{id}/payment": {
            "post": {
                "summary": "Start a Paystack checkout (client)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"email": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "checkout"}, "502": {"description": "payment_error"}}
            }
        },
        "/api/v1/fees/quote": {
            "get": {
                "summary": "Quote the platform fee",
                "parameters": [
                    {"name": "amount", "in": "query", "type": "integer", "description": "worker amount in cents"},
                    {"name": "rand", "in": "query", "type": "string", "description": "worker amount in rand"}
                ],
                "responses": {"200": {"description": "quote"}}
            }
        },
        "/api/v1/notifications": {
            "get": {
                "summary": "List notifications",
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "notifications"}}
            }
        },
        "/api/v1/notifications/unread-count": {
            "get": {"summary": "Unread notification count", "responses": {"200": {"description": "count"}}}
        },
        "/api/v1/notifications/{id}/read": {
            "post": {
                "summary": "Mark a notification read",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "marked"}, "404": {"description": "not_found"}}
            }
        },
        "/api/v1/statements": {
            "get": {
                "summary": "Worker income statement",
                "produces": ["application/json", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "xlsx", "pdf"]}
                ],
                "responses": {"200": {"description": "statement"}}
            }
        },
        "/webhooks/paystack": {
            "post": {
                "summary": "Paystack event webhook",
                "security": [],
                "parameters": [{"name": "X-Paystack-Signature", "in": "header", "required": true, "type": "string"}],
                "responses": {"200": {"description": "accepted"}, "401": {"description": "invalid_signature"}}
            }
        },
        "/payments/callback": {
            "get": {
                "summary": "Checkout redirect",
                "security": [],
                "parameters": [{"name": "reference", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "transaction"}}
            }
        }
    },
    "definitions": {
        "CreateBooking": {
            "type": "object",
            "required": ["worker_id", "scheduled_date", "start_time", "address", "suburb", "city"],
            "properties": {
                "worker_id": {"type": "string"},
                "scheduled_date": {"type": "string", "example": "2026-11-02"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string"},
                "estimated_duration_mins": {"type": "integer"},
                "address": {"type": "string"},
                "suburb": {"type": "string"},
                "city": {"type": "string"},
                "province": {"type": "string"},
                "postal_code": {"type": "string"},
                "location_lat": {"type": "number"},
                "location_lng": {"type": "number"},
                "total_amount": {"type": "integer", "description": "cents"}
            }
        },
        "TransitionBody": {
            "type": "object",
            "properties": {
                "total_amount": {"type": "integer", "description": "accept only, cents"},
                "reason": {"type": "string"},
                "absent_party": {"type": "string", "enum": ["client", "worker"]}
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "DomestIQ Booking API",
	Description:      "Bookings, payments and settlement for domestic work.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
