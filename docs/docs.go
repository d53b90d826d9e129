// Package docs holds the OpenAPI document served by the Swagger UI.
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "/api/v1"}],
    "paths": {
        "/events/{resourceType}": {
            "post": {
                "operationId": "deliverEvent",
                "summary": "Deliver an order event",
                "description": "Reconciles a FHIR bundle holding one order, its patient and its encounter into the ERP. Answers 503 when a retry may succeed and 422 when the data must change first.",
                "tags": ["events"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/components/parameters/resourceType"},
                    {"$ref": "#/components/parameters/eventHeader"},
                    {"$ref": "#/components/parameters/eventQuery"},
                    {"$ref": "#/components/parameters/deliveryID"}
                ],
                "requestBody": {
                    "required": true,
                    "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Bundle"}}}
                },
                "responses": {
                    "200": {"$ref": "#/components/responses/Ingested"},
                    "400": {"$ref": "#/components/responses/Error"},
                    "401": {"$ref": "#/components/responses/Error"},
                    "413": {"$ref": "#/components/responses/Error"},
                    "422": {"$ref": "#/components/responses/IngestError"},
                    "503": {"$ref": "#/components/responses/IngestError"}
                }
            }
        },
        "/events/{resourceType}/{id}": {
            "post": {
                "operationId": "deliverEventReference",
                "summary": "Deliver an order event by reference",
                "description": "Fetches the order bundle from the clinical system and reconciles it.",
                "tags": ["events"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/components/parameters/resourceType"},
                    {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}, "description": "Order resource id"},
                    {"$ref": "#/components/parameters/eventHeader"},
                    {"$ref": "#/components/parameters/eventQuery"},
                    {"$ref": "#/components/parameters/deliveryID"}
                ],
                "responses": {
                    "200": {"$ref": "#/components/responses/Ingested"},
                    "400": {"$ref": "#/components/responses/Error"},
                    "401": {"$ref": "#/components/responses/Error"},
                    "422": {"$ref": "#/components/responses/IngestError"},
                    "503": {"$ref": "#/components/responses/IngestError"}
                }
            }
        },
        "/reconciliations": {
            "get": {
                "operationId": "listReconciliations",
                "summary": "List reconciliation records",
                "description": "Lists journal records, newest first unless order_by or order_dir is set",
                "tags": ["reconciliations"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "page", "in": "query", "schema": {"type": "integer", "minimum": 1, "default": 1}},
                    {"name": "page_size", "in": "query", "schema": {"type": "integer", "minimum": 1, "maximum": 100, "default": 20}},
                    {"name": "order_by", "in": "query", "schema": {"type": "string", "enum": ["created_at", "updated_at", "processed_at", "status", "correlation_key", "duration_ms"]}},
                    {"name": "order_dir", "in": "query", "schema": {"type": "string", "enum": ["asc", "desc"]}},
                    {"name": "status", "in": "query", "schema": {"type": "string", "enum": ["SUCCEEDED", "FAILED", "DUPLICATE"]}},
                    {"name": "event_type", "in": "query", "schema": {"type": "string", "enum": ["create", "update", "discontinue"]}},
                    {"name": "correlation_key", "in": "query", "schema": {"type": "string"}, "description": "Visit id"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "content": {"application/json": {"schema": {
                            "type": "object",
                            "properties": {
                                "success": {"type": "boolean"},
                                "data": {"type": "array", "items": {"$ref": "#/components/schemas/ReconciliationRecord"}},
                                "meta": {"$ref": "#/components/schemas/Meta"}
                            }
                        }}}
                    },
                    "400": {"$ref": "#/components/responses/Error"},
                    "401": {"$ref": "#/components/responses/Error"}
                }
            }
        },
        "/reconciliations/{id}": {
            "get": {
                "operationId": "getReconciliation",
                "summary": "Get a reconciliation record",
                "tags": ["reconciliations"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/components/parameters/recordID"}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "content": {"application/json": {"schema": {
                            "type": "object",
                            "properties": {
                                "success": {"type": "boolean"},
                                "data": {"$ref": "#/components/schemas/ReconciliationRecord"}
                            }
                        }}}
                    },
                    "400": {"$ref": "#/components/responses/Error"},
                    "404": {"$ref": "#/components/responses/Error"}
                }
            }
        },
        "/reconciliations/{id}/replay": {
            "post": {
                "operationId": "replayReconciliation",
                "summary": "Replay a failed delivery",
                "description": "Re-runs a FAILED record from its dead-letter bundle, or by fetching the order again",
                "tags": ["reconciliations"],
                "security": [{"BearerAuth": []}],
                "parameters": [{"$ref": "#/components/parameters/recordID"}],
                "responses": {
                    "200": {"$ref": "#/components/responses/Ingested"},
                    "400": {"$ref": "#/components/responses/Error"},
                    "404": {"$ref": "#/components/responses/Error"},
                    "409": {"$ref": "#/components/responses/Error"},
                    "422": {"$ref": "#/components/responses/IngestError"},
                    "503": {"$ref": "#/components/responses/IngestError"}
                }
            }
        },
        "/system/info": {
            "get": {
                "operationId": "getSystemInfo",
                "summary": "Get system information",
                "tags": ["system"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {
                        "description": "OK",
                        "content": {"application/json": {"schema": {
                            "type": "object",
                            "properties": {
                                "success": {"type": "boolean"},
                                "data": {"$ref": "#/components/schemas/SystemInfo"}
                            }
                        }}}
                    }
                }
            }
        }
    },
    "components": {
        "securitySchemes": {
            "BearerAuth": {"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}
        },
        "parameters": {
            "resourceType": {"name": "resourceType", "in": "path", "required": true, "schema": {"type": "string", "enum": ["ServiceRequest", "MedicationRequest"]}},
            "eventHeader": {"name": "X-Fhir-Event-Type", "in": "header", "schema": {"type": "string", "enum": ["c", "u", "d"]}, "description": "Event tag"},
            "eventQuery": {"name": "event", "in": "query", "schema": {"type": "string", "enum": ["c", "u", "d"]}, "description": "Event tag when the header is not set"},
            "deliveryID": {"name": "X-Delivery-ID", "in": "header", "schema": {"type": "string", "maxLength": 128}, "description": "Sender delivery id used for de-duplication"},
            "recordID": {"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}
        },
        "responses": {
            "Ingested": {
                "description": "Delivery reconciled or acknowledged as duplicate",
                "content": {"application/json": {"schema": {
                    "type": "object",
                    "properties": {
                        "success": {"type": "boolean"},
                        "data": {"$ref": "#/components/schemas/IngestResult"}
                    }
                }}}
            },
            "IngestError": {
                "description": "Delivery failed, data carries the journal record",
                "content": {"application/json": {"schema": {
                    "type": "object",
                    "properties": {
                        "success": {"type": "boolean", "examples": [false]},
                        "data": {"$ref": "#/components/schemas/IngestResult"},
                        "error": {"$ref": "#/components/schemas/ErrorInfo"}
                    }
                }}}
            },
            "Error": {
                "description": "Error",
                "content": {"application/json": {"schema": {
                    "type": "object",
                    "properties": {
                        "success": {"type": "boolean", "examples": [false]},
                        "error": {"$ref": "#/components/schemas/ErrorInfo"}
                    }
                }}}
            }
        },
        "schemas": {
            "Bundle": {
                "type": "object",
                "required": ["resourceType"],
                "properties": {
                    "resourceType": {"type": "string", "const": "Bundle"},
                    "type": {"type": "string"},
                    "entry": {"type": "array", "items": {"type": "object", "properties": {"resource": {"type": "object"}}}}
                }
            },
            "IngestResult": {
                "type": "object",
                "properties": {
                    "delivery_id": {"type": "string"},
                    "duplicate": {"type": "boolean"},
                    "action": {"type": "string", "enum": ["ORDER_CREATED", "LINE_UPSERTED", "LINE_DELETED", "ORDER_CANCELLED", "NOOP"]},
                    "record": {"$ref": "#/components/schemas/ReconciliationRecord"}
                }
            },
            "ReconciliationRecord": {
                "type": "object",
                "properties": {
                    "id": {"type": "string", "format": "uuid"},
                    "delivery_id": {"type": "string"},
                    "event_type": {"type": "string", "enum": ["create", "update", "discontinue"]},
                    "event_tag": {"type": "string"},
                    "resource_type": {"type": "string"},
                    "resource_id": {"type": "string"},
                    "correlation_key": {"type": "string"},
                    "status": {"type": "string", "enum": ["SUCCEEDED", "FAILED", "DUPLICATE"]},
                    "action": {"type": "string"},
                    "order_id": {"type": "integer"},
                    "line_id": {"type": "integer"},
                    "error_code": {"type": "string"},
                    "error_message": {"type": "string"},
                    "dead_letter_key": {"type": "string"},
                    "attempts": {"type": "integer"},
                    "duration_ms": {"type": "integer"},
                    "processed_at": {"type": "string", "format": "date-time"},
                    "created_at": {"type": "string", "format": "date-time"},
                    "updated_at": {"type": "string", "format": "date-time"}
                }
            },
            "ErrorInfo": {
                "type": "object",
                "properties": {
                    "code": {"type": "string"},
                    "message": {"type": "string"},
                    "request_id": {"type": "string"},
                    "timestamp": {"type": "string", "format": "date-time"},
                    "details": {"type": "array", "items": {"type": "object", "properties": {"field": {"type": "string"}, "message": {"type": "string"}}}}
                }
            },
            "Meta": {
                "type": "object",
                "properties": {
                    "total": {"type": "integer"},
                    "page": {"type": "integer"},
                    "page_size": {"type": "integer"},
                    "total_pages": {"type": "integer"}
                }
            },
            "SystemInfo": {
                "type": "object",
                "properties": {
                    "name": {"type": "string"},
                    "version": {"type": "string"},
                    "go_version": {"type": "string"},
                    "uptime": {"type": "string"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Title:            "Clinic Sync API",
	Description:      "Reconciles clinical order events into ERP sale orders",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
