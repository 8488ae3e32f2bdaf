// Package docs registers the OpenAPI document served at /swagger.
// Regenerate swagger.json after changing handler annotations:
//
//go:generate swag init -g cmd/partnerhub/main.go -d ../ -o . --outputTypes json
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var docTemplate string

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "partnerhub API",
	Description:      "Local-business partnership platform: accounts, stores, partnership posts, coupons and notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
