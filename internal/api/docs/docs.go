// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service and dependency health",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/v1/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Request, cache, store and rate limit statistics",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/v1/privacy": {
            "get": {
                "produces": ["application/json"],
                "tags": ["privacy"],
                "summary": "Data retention policy",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/v1/score": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scoring"],
                "summary": "Score one assessment without storing it",
                "parameters": [
                    {"description": "Responses keyed by question id", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/profile.ScoreRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/profile.ScoredAssessment"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/v1/consolidate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scoring"],
                "summary": "Consolidate caller-weighted score vectors",
                "parameters": [
                    {"description": "Weighted sources", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.ConsolidateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/profile.ConsolidatedProfile"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/v1/invitations": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["invitations"],
                "summary": "Issue a respondent invitation token",
                "parameters": [
                    {"description": "Invitation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.InvitationRequest"}},
                    {"type": "string", "description": "Admin token, when the server sets one", "name": "X-Admin-Token", "in": "header"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.InvitationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/v1/children/{childID}": {
            "delete": {
                "tags": ["privacy"],
                "summary": "Erase every assessment and snapshot of a child",
                "parameters": [
                    {"type": "string", "description": "Child id", "name": "childID", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/v1/children/{childID}/assessments": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["children"],
                "summary": "Score and store an assessment for a child",
                "parameters": [
                    {"type": "string", "description": "Child id", "name": "childID", "in": "path", "required": true},
                    {"type": "string", "description": "Bearer invitation token", "name": "Authorization", "in": "header"},
                    {"description": "Submission", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/profile.Submission"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/database.Assessment"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.Error"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/v1/children/{childID}/profile": {
            "get": {
                "produces": ["application/json"],
                "tags": ["children"],
                "summary": "Build (or return the cached) consolidated profile of a child",
                "parameters": [
                    {"type": "string", "description": "Child id", "name": "childID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/profile.Profile"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        },
        "/v1/children/{childID}/profile/latest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["children"],
                "summary": "Last stored profile snapshot of a child",
                "parameters": [
                    {"type": "string", "description": "Child id", "name": "childID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/database.ProfileSnapshot"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.Error"}}
                }
            }
        }
    },
    "definitions": {
        "api.Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "category": {"type": "string"},
                "timestamp": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "scoring.ScoreVector": {
            "type": "object",
            "description": "Skill name to score (1-5), plus optional Engagement, Modality, Social and Interests preferences.",
            "additionalProperties": {}
        },
        "scoring.Responses": {
            "type": "object",
            "description": "Question id (1-28) to a number, a choice string or a list of choices.",
            "additionalProperties": {}
        },
        "scoring.Source": {
            "type": "object",
            "properties": {
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "weight": {"type": "number"},
                "quizType": {"type": "string", "enum": ["parent_home", "teacher_classroom", "general"]},
                "respondentType": {"type": "string", "enum": ["parent", "teacher", "professional", "other"]},
                "respondentId": {"type": "string"}
            }
        },
        "scoring.Conflict": {
            "type": "object",
            "properties": {
                "skill": {"type": "string"},
                "maxDifference": {"type": "number"},
                "severity": {"type": "string"},
                "respondents": {"type": "array", "items": {"type": "string"}}
            }
        },
        "profile.ScoreRequest": {
            "type": "object",
            "properties": {
                "responses": {"$ref": "#/definitions/scoring.Responses"},
                "quizType": {"type": "string"},
                "ageGroup": {"type": "string"}
            }
        },
        "profile.ScoredAssessment": {
            "type": "object",
            "properties": {
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "personality": {"type": "string"},
                "strengths": {"type": "array", "items": {"type": "string"}},
                "growthAreas": {"type": "array", "items": {"type": "string"}}
            }
        },
        "profile.ConsolidatedProfile": {
            "type": "object",
            "properties": {
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "personality": {"type": "string"},
                "strengths": {"type": "array", "items": {"type": "string"}},
                "growthAreas": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "agreement": {"type": "string"},
                "meanDifference": {"type": "number"},
                "conflicts": {"type": "array", "items": {"$ref": "#/definitions/scoring.Conflict"}},
                "requiresReview": {"type": "boolean"},
                "subScores": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "profile.Profile": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "personality": {"type": "string"},
                "strengths": {"type": "array", "items": {"type": "string"}},
                "growthAreas": {"type": "array", "items": {"type": "string"}},
                "confidence": {"type": "number"},
                "agreement": {"type": "string"},
                "conflicts": {"type": "array", "items": {"$ref": "#/definitions/scoring.Conflict"}},
                "requiresReview": {"type": "boolean"},
                "assessmentCount": {"type": "integer"},
                "snapshotId": {"type": "string"},
                "generatedAt": {"type": "string"}
            }
        },
        "profile.Submission": {
            "type": "object",
            "properties": {
                "respondentId": {"type": "string"},
                "respondentType": {"type": "string"},
                "quizType": {"type": "string"},
                "ageGroup": {"type": "string"},
                "responses": {"$ref": "#/definitions/scoring.Responses"}
            }
        },
        "database.Assessment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "childId": {"type": "string"},
                "respondentId": {"type": "string"},
                "respondentType": {"type": "string"},
                "quizType": {"type": "string"},
                "ageGroup": {"type": "string"},
                "responses": {"$ref": "#/definitions/scoring.Responses"},
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "submittedAt": {"type": "string"}
            }
        },
        "database.ProfileSnapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "childId": {"type": "string"},
                "scores": {"$ref": "#/definitions/scoring.ScoreVector"},
                "insights": {"type": "object"},
                "report": {"type": "object"},
                "assessmentCount": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "api.ConsolidateRequest": {
            "type": "object",
            "properties": {
                "sources": {"type": "array", "items": {"$ref": "#/definitions/scoring.Source"}}
            }
        },
        "api.InvitationRequest": {
            "type": "object",
            "properties": {
                "childId": {"type": "string"},
                "respondentId": {"type": "string"},
                "respondentType": {"type": "string"},
                "quizType": {"type": "string"},
                "ttl": {"type": "string", "example": "72h"}
            }
        },
        "api.InvitationResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expiresAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Learning Profile API",
	Description:      "Scores child learning assessments and consolidates them into profiles.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
