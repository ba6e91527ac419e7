package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CredChain API",
        "description": "Credential verification backend bridging the institution registry and transcript contracts",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Wallet session lifecycle"},
        {"name": "Institutions", "description": "Institution registration and lifecycle"},
        {"name": "Credentials", "description": "Credential issuance, revocation and verification"},
        {"name": "Reconciliation", "description": "Dual-write repair"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/session/connect": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Connect wallet and mint a session token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/session": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/session/disconnect": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Disconnect wallet",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/institutions": {
            "get": {
                "tags": ["Institutions"],
                "summary": "List institutions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Institutions"],
                "summary": "Register institution",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterInstitutionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/stats": {
            "get": {
                "tags": ["Institutions"],
                "summary": "Registry statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{id}": {
            "get": {
                "tags": ["Institutions"],
                "summary": "Get institution",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{id}/suspend": {
            "post": {
                "tags": ["Institutions"],
                "summary": "Suspend institution",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/{id}/reactivate": {
            "post": {
                "tags": ["Institutions"],
                "summary": "Reactivate institution",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/chain/{address}": {
            "get": {
                "tags": ["Institutions"],
                "summary": "On-chain institution record",
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutions/chain/{address}/verify": {
            "post": {
                "tags": ["Institutions"],
                "summary": "Verify institution on chain",
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials": {
            "get": {
                "tags": ["Credentials"],
                "summary": "List credentials",
                "parameters": [
                    {"name": "student", "in": "query", "type": "string"},
                    {"name": "institution", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Credentials"],
                "summary": "Issue credential",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "student_address", "in": "formData", "required": true, "type": "string"},
                    {"name": "student_id", "in": "formData", "required": true, "type": "string"},
                    {"name": "degree_type", "in": "formData", "required": true, "type": "string"},
                    {"name": "graduation_year", "in": "formData", "required": true, "type": "integer"},
                    {"name": "institution_address", "in": "formData", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Get credential",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/{id}/revoke": {
            "post": {
                "tags": ["Credentials"],
                "summary": "Revoke credential",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RevokeCredentialRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/verify/{cid}": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Verify credential by content identifier",
                "parameters": [
                    {"name": "cid", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/chain/count": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Total on-chain transcript count",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/chain/{id}": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Get on-chain transcript",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/chain/student/{address}": {
            "get": {
                "tags": ["Credentials"],
                "summary": "List a student's on-chain transcripts",
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/credentials/register/{address}/export": {
            "get": {
                "tags": ["Credentials"],
                "summary": "Export credential register",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reconcile/pending": {
            "get": {
                "tags": ["Reconciliation"],
                "summary": "List pending write intents",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reconcile": {
            "post": {
                "tags": ["Reconciliation"],
                "summary": "Queue all pending intents",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reconcile/{id}": {
            "post": {
                "tags": ["Reconciliation"],
                "summary": "Reconcile one intent",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Institution": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "address": {"type": "string"},
                "name": {"type": "string"},
                "country": {"type": "string"},
                "status": {"type": "string"},
                "registered_by": {"type": "string"},
                "transaction_hash": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "Credential": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "chain_id": {"type": "integer"},
                "student_id": {"type": "string"},
                "student_address": {"type": "string"},
                "institution_address": {"type": "string"},
                "degree_type": {"type": "integer"},
                "graduation_year": {"type": "integer"},
                "document_hash": {"type": "string"},
                "ipfs_cid": {"type": "string"},
                "ipfs_url": {"type": "string"},
                "transaction_hash": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "RegisterInstitutionRequest": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "name": {"type": "string"},
                "country": {"type": "string"}
            },
            "required": ["address", "name", "country"]
        },
        "RevokeCredentialRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
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
