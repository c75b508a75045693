package concord

import (
	"io"
	"log/slog"
	"testing"

	"github.com/broady/concord/concordgen/schema"
	"github.com/broady/concord/validate"
)

// testSchema declares:
//
//	Test.bar(a: number, b?: string): string throws RuntimeError
//	Test.when(): string (date-time)
//	Test.none(): void
//	Secure.whoami(): string, with client and server-only context
const testSchema = `{"definitions":{
	"RuntimeError":{"type":"object","properties":{"name":{"type":"string"},"message":{"type":"string"},"stack":{"type":"string"}}},
	"ClientContext":{"type":"object","properties":{"foo":{"type":"string"},"user":{"type":"string"}},"required":["foo"]},
	"ServerOnlyContext":{"type":"object","properties":{"user":{"type":"string"}}},
	"Test":{"type":"object","properties":{
		"clientContext":{"type":"boolean","enum":[false]},
		"serverOnlyContext":{"type":"boolean","enum":[false]},
		"bar":{"type":"object","properties":{
			"params":{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"string"}},"propertyOrder":["a","b"],"required":["a"]},
			"returns":{"type":"string"},
			"throws":{"$ref":"#/definitions/RuntimeError"}}},
		"when":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"string","format":"date-time"}}},
		"none":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"null"}}}
	}},
	"Secure":{"type":"object","properties":{
		"whoami":{"type":"object","properties":{
			"params":{"type":"object","properties":{}},
			"returns":{"type":"string"}}}
	}}
}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTable(t *testing.T, src string) *validate.Table {
	t.Helper()
	doc, err := schema.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	opts := validate.DefaultOptions()
	opts.Logger = discardLogger()
	table, err := validate.NewTable(doc, opts)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return table
}
