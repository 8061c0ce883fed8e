// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with `swag init` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "OrbitDesk Dev Team"
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
        "/billing/webhook/stripe": {
            "post": {
                "description": "Verifies the Stripe-Signature header against the raw body, records the event id once and applies the payment or subscription transition. Duplicate and unsupported events are acknowledged with 200. No authentication required.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing Webhook"],
                "summary": "Handle Stripe webhook",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Stripe webhook signature",
                        "name": "Stripe-Signature",
                        "in": "header",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "Event accepted", "schema": {"$ref": "#/definitions/billing_model.WebhookResponse"}},
                    "400": {"description": "Missing or invalid signature, or malformed event", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "429": {"description": "Rate limited", "schema": {}},
                    "500": {"description": "Processing failed, Stripe will retry", "schema": {"$ref": "#/definitions/billing_model.WebhookResponse"}},
                    "503": {"description": "Webhook secret not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        },
        "/billing/subscription/check": {
            "post": {
                "description": "Expires ended trials, moves active subscriptions past their period end to past_due and cancels past_due subscriptions beyond the grace period. Authorized with the CRON_SECRET bearer token.",
                "produces": ["application/json"],
                "tags": ["Billing Subscription"],
                "summary": "Run subscription lifecycle sweep",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Bearer CRON_SECRET",
                        "name": "Authorization",
                        "in": "header",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "Sweep results", "schema": {"$ref": "#/definitions/billing_model.SweepResponse"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "500": {"description": "Sweep failed", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "503": {"description": "CRON_SECRET not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        },
        "/billing/subscription/manage": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Actions: portal returns a Stripe billing portal URL, cancel sets cancel_at_period_end, resume clears it. Caller must be owner or admin of the org.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing Subscription"],
                "summary": "Manage org subscription",
                "parameters": [
                    {
                        "description": "Action",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/billing_model.ManageSubscriptionBody"}
                    }
                ],
                "responses": {
                    "200": {"description": "Updated subscription state", "schema": {"$ref": "#/definitions/billing_service.ManageResult"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "403": {"description": "Not an owner or admin", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "404": {"description": "Org has no subscription", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "409": {"description": "Subscription cannot be changed", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "503": {"description": "Payment provider not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        },
        "/billing/subscription/create": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Reuses or creates the org's Stripe customer and opens a subscription Checkout session for the plan price. A 14 day trial applies unless the org is already trialing. An org without a current subscription gets a local trialing row. Caller must be owner or admin of the org.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing Subscription"],
                "summary": "Create org subscription",
                "parameters": [
                    {
                        "description": "Plan selection",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/billing_model.CreateSubscriptionBody"}
                    }
                ],
                "responses": {
                    "200": {"description": "Checkout URL", "schema": {"$ref": "#/definitions/billing_service.SubscribeResult"}},
                    "400": {"description": "Invalid body or plan has no Stripe price", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "403": {"description": "Not an owner or admin", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "404": {"description": "Plan not found", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "429": {"description": "Rate limited", "schema": {}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "503": {"description": "Payment provider not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        },
        "/billing/setup-intent": {
            "post": {
                "description": "Creates a Stripe customer tagged pending_signup and a SetupIntent for it. The card is not charged.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Billing Subscription"],
                "summary": "Create setup intent",
                "parameters": [
                    {
                        "description": "Signup contact",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/billing_model.SetupIntentBody"}
                    }
                ],
                "responses": {
                    "200": {"description": "Client secret for the card form", "schema": {"$ref": "#/definitions/billing_service.SetupIntentResult"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "429": {"description": "Rate limited", "schema": {}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "503": {"description": "Payment provider not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        },
        "/payments/checkout": {
            "post": {
                "description": "Creates a hosted Stripe Checkout session for the payment request, records the session on it and moves it to pending_payment.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Payments"],
                "summary": "Create checkout session",
                "parameters": [
                    {
                        "description": "Checkout data",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/billing_model.CheckoutBody"}
                    }
                ],
                "responses": {
                    "200": {"description": "Checkout URL", "schema": {"$ref": "#/definitions/billing_model.CheckoutResponse"}},
                    "400": {"description": "Invalid body", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "404": {"description": "Payment request not found", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "409": {"description": "Payment request is not awaiting payment", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "429": {"description": "Rate limited", "schema": {}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}},
                    "503": {"description": "Payment provider not configured", "schema": {"$ref": "#/definitions/common_model.DescriptiveError"}}
                }
            }
        }
    },
    "definitions": {
        "billing_model.WebhookResponse": {
            "type": "object",
            "properties": {
                "received": {"type": "boolean"},
                "processed": {"type": "boolean"},
                "duplicate": {"type": "boolean"},
                "ignored": {"type": "boolean"},
                "reason": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "billing_model.SweepResults": {
            "type": "object",
            "properties": {
                "expiredTrials": {"type": "integer"},
                "pastDueSubscriptions": {"type": "integer"},
                "canceledAfterGrace": {"type": "integer"}
            }
        },
        "billing_model.SweepResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "timestamp": {"type": "string"},
                "results": {"$ref": "#/definitions/billing_model.SweepResults"}
            }
        },
        "billing_model.CheckoutBody": {
            "type": "object",
            "required": ["requestId", "amount"],
            "properties": {
                "requestId": {"type": "string", "maxLength": 255},
                "amount": {"type": "number", "description": "Major currency units, e.g. 49.99"},
                "currency": {"type": "string"},
                "description": {"type": "string", "maxLength": 500},
                "orgId": {"type": "string"},
                "projectId": {"type": "string", "maxLength": 255}
            }
        },
        "billing_model.CheckoutResponse": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "sessionId": {"type": "string"}
            }
        },
        "billing_model.ManageSubscriptionBody": {
            "type": "object",
            "required": ["orgId", "action"],
            "properties": {
                "orgId": {"type": "string"},
                "action": {"type": "string", "enum": ["portal", "cancel", "resume"]},
                "returnUrl": {"type": "string"}
            }
        },
        "billing_service.ManageResult": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "url": {"type": "string"},
                "status": {"type": "string"},
                "cancelAtPeriodEnd": {"type": "boolean"}
            }
        },
        "billing_model.CreateSubscriptionBody": {
            "type": "object",
            "required": ["orgId", "planId"],
            "properties": {
                "orgId": {"type": "string"},
                "planId": {"type": "string"},
                "billingCycle": {"type": "string", "enum": ["monthly", "yearly"]},
                "successUrl": {"type": "string"},
                "cancelUrl": {"type": "string"}
            }
        },
        "billing_service.SubscribeResult": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "url": {"type": "string"},
                "sessionId": {"type": "string"}
            }
        },
        "billing_model.BillingAddress": {
            "type": "object",
            "properties": {
                "line1": {"type": "string"},
                "line2": {"type": "string"},
                "city": {"type": "string"},
                "state": {"type": "string"},
                "postalCode": {"type": "string"},
                "country": {"type": "string"}
            }
        },
        "billing_model.SetupIntentBody": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"},
                "companyName": {"type": "string"},
                "billingName": {"type": "string"},
                "billingAddress": {"$ref": "#/definitions/billing_model.BillingAddress"}
            }
        },
        "billing_service.SetupIntentResult": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "clientSecret": {"type": "string"},
                "customerId": {"type": "string"},
                "setupIntentId": {"type": "string"}
            }
        },
        "common_model.DescriptiveError": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "description": {"type": "string"},
                "context": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "OrbitDesk Billing API",
	Description:      "Stripe webhook intake, payment checkout and subscription lifecycle for OrbitDesk.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
