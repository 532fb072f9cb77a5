package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Driving School Tuition Ledger API",
        "description": "Installment scheduling, payment settlement and financial summaries for driving-school enrollments.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Ledger", "description": "Enrollments, installments and payments"},
        {"name": "Summaries", "description": "Derived financial summaries"},
        {"name": "Reports", "description": "School reports, exports and student statements"}
    ],
    "paths": {
        "/enrollments": {
            "post": {
                "tags": ["Ledger"],
                "summary": "Enroll a student and schedule installments",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid installment plan", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active enrollment already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/installments": {
            "get": {
                "tags": ["Ledger"],
                "summary": "List installments of an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Ledger"],
                "summary": "Schedule installments for an enrollment without any",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleInstallmentsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Installments already scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/payments": {
            "get": {
                "tags": ["Ledger"],
                "summary": "List payments of an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/summary": {
            "get": {
                "tags": ["Summaries"],
                "summary": "Enrollment financial summary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/installments/{id}/payments": {
            "post": {
                "tags": ["Ledger"],
                "summary": "Settle an installment",
                "description": "Records a payment for the installment amount, or for amount when given. Idempotency-Key makes client retries replay the first receipt.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Settled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Installment belongs to another enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Installment not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Installment already settled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/{id}": {
            "delete": {
                "tags": ["Ledger"],
                "summary": "Reverse a payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Reversed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Payment not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/summary": {
            "get": {
                "tags": ["Summaries"],
                "summary": "Student financial summary across enrollments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student has no enrollments", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/statement": {
            "get": {
                "tags": ["Reports"],
                "summary": "Student account statement",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/report": {
            "get": {
                "tags": ["Reports"],
                "summary": "School financial report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "PARTIALLY_PAID", "PAID", "OVERDUE"]},
                    {"name": "min_days_overdue", "in": "query", "type": "integer"},
                    {"name": "method", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schools/{id}/report/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export school report rows",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "dataset", "in": "query", "type": "string", "enum": ["installments", "payments"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "EnrollRequest": {
            "type": "object",
            "required": ["student_id", "school_id", "category_id", "total_cost"],
            "properties": {
                "student_id": {"type": "string"},
                "school_id": {"type": "string"},
                "category_id": {"type": "string"},
                "total_cost": {"type": "string", "example": "1000.00"},
                "duration_months": {"type": "integer", "minimum": 1, "maximum": 6},
                "installment_count": {"type": "integer", "minimum": 1, "maximum": 3},
                "first_installment_amount": {"type": "string", "example": "400.00"},
                "start_date": {"type": "string", "format": "date"}
            }
        },
        "ScheduleInstallmentsRequest": {
            "type": "object",
            "properties": {
                "total_cost": {"type": "string"},
                "installment_count": {"type": "integer"},
                "first_installment_amount": {"type": "string"},
                "start_date": {"type": "string", "format": "date"}
            }
        },
        "ApplyPaymentRequest": {
            "type": "object",
            "required": ["method"],
            "properties": {
                "enrollment_id": {"type": "string"},
                "method": {"type": "string", "example": "cash"},
                "notes": {"type": "string"},
                "paid_at": {"type": "string", "format": "date-time"},
                "amount": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
