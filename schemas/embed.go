// Package schemas embeds the gateway protocol's JSON schemas.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS

const (
	Hello   = "hello.schema.json"
	Welcome = "welcome.schema.json"
	Call    = "call.schema.json"
	Result  = "result.schema.json"
	Receipt = "receipt.schema.json"
)
