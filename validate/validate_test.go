package validate

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/broady/concord/concordgen/schema"
)

func quietOptions(opts Options) Options {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func mustDoc(t *testing.T, src string) *schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func mustFactory(t *testing.T, src string, opts Options) *Factory {
	t.Helper()
	f, err := NewFactory(mustDoc(t, src), quietOptions(opts))
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	return f
}

func decode(t *testing.T, src string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		t.Fatalf("decode %s: %v", src, err)
	}
	return v
}

func compileNode(t *testing.T, f *Factory, src string) *Validator {
	t.Helper()
	var n schema.Node
	if err := json.Unmarshal([]byte(src), &n); err != nil {
		t.Fatalf("decode node: %v", err)
	}
	v, err := f.Compile(&n)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return v
}

const testSchema = `{"definitions":{
	"Test":{"type":"object","properties":{
		"bar":{"type":"object","properties":{
			"params":{"type":"object","properties":{"a":{"type":"number"}},"propertyOrder":["a"],"required":["a"]},
			"returns":{"type":"string"}}},
		"when":{"type":"object","properties":{
			"params":{"type":"object","properties":{"at":{"type":"string","format":"date-time"}},"required":["at"]},
			"returns":{"type":"string","format":"date-time"}}}
	}},
	"Tree":{"type":"object","properties":{
		"value":{"type":"number"},
		"children":{"type":"array","items":{"$ref":"#/definitions/Tree"}}},
		"required":["value"],"additionalProperties":false},
	"Stamp":{"type":"string","format":"date-time"}
}}`

func TestValidator_Params(t *testing.T) {
	f := mustFactory(t, testSchema, DefaultOptions())
	vs, err := f.ClassValidators("Test", FieldParams)
	if err != nil {
		t.Fatalf("ClassValidators() error = %v", err)
	}
	bar := vs["bar"]

	if _, err := bar.Validate(decode(t, `{"a":3}`)); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}

	_, err = bar.Validate(decode(t, `{}`))
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected Errors, got %v", err)
	}
	want := Errors{{
		Keyword: "required",
		Path:    "",
		Message: "must have required property 'a'",
		Params:  map[string]any{"missingProperty": "a"},
	}}
	if diff := cmp.Diff(want, errs); diff != "" {
		t.Errorf("errors (-want +got):\n%s", diff)
	}
}

func TestValidator_CollectsAllErrors(t *testing.T) {
	f := mustFactory(t, `{"definitions":{}}`, DefaultOptions())
	v := compileNode(t, f, `{"type":"object","properties":{
		"name":{"type":"string","minLength":2},
		"age":{"type":"integer","minimum":0},
		"email":{"type":"string","format":"email"}},"required":["id"]}`)

	_, err := v.Validate(decode(t, `{"name":"x","age":-1.5,"email":"nope"}`))
	var errs Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected Errors, got %v", err)
	}
	var got []string
	for _, e := range errs {
		got = append(got, e.Keyword+" "+e.Path)
	}
	want := []string{"required ", "minLength /name", "type /age", "format /email"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failed keywords (-want +got):\n%s", diff)
	}
}

func TestValidator_AdditionalProperties(t *testing.T) {
	const node = `{"type":"object","properties":{"a":{"type":"number"}},"additionalProperties":false}`

	reject := compileNode(t, mustFactory(t, `{"definitions":{}}`, DefaultOptions()), node)
	_, err := reject.Validate(decode(t, `{"a":1,"b":2}`))
	var errs Errors
	if !errors.As(err, &errs) || errs[0].Keyword != "additionalProperties" || errs[0].Params["additionalProperty"] != "b" {
		t.Errorf("Reject: got %v", err)
	}

	opts := DefaultOptions()
	opts.Additional = Strip
	strip := compileNode(t, mustFactory(t, `{"definitions":{}}`, opts), node)
	out, err := strip.Validate(decode(t, `{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("Strip: unexpected error %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": 1.0}, out); diff != "" {
		t.Errorf("Strip result (-want +got):\n%s", diff)
	}
}

func TestValidator_CoercesDates(t *testing.T) {
	f := mustFactory(t, testSchema, DefaultOptions())
	params, err := f.ClassValidators("Test", FieldParams)
	if err != nil {
		t.Fatal(err)
	}
	returns, err := f.ClassValidators("Test", FieldReturns)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	args, err := params["when"].Validate(decode(t, `{"at":"2024-05-01T12:30:00Z"}`))
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if got, ok := args.(map[string]any)["at"].(time.Time); !ok || !got.Equal(want) {
		t.Errorf("args.at = %#v, want %v", args.(map[string]any)["at"], want)
	}

	wrapped, err := returns["when"].Validate(map[string]any{"returns": "2024-05-01T12:30:00Z"})
	if err != nil {
		t.Fatalf("returns: %v", err)
	}
	if got, ok := wrapped.(map[string]any)["returns"].(time.Time); !ok || !got.Equal(want) {
		t.Errorf("returns = %#v, want %v", wrapped.(map[string]any)["returns"], want)
	}

	// Already coerced values validate again.
	if _, err := returns["when"].Validate(wrapped); err != nil {
		t.Errorf("revalidating a coerced value failed: %v", err)
	}

	if _, err := params["when"].Validate(decode(t, `{"at":"yesterday"}`)); err == nil {
		t.Error("malformed date accepted")
	}
}

func TestValidator_CoercionDisabled(t *testing.T) {
	f := mustFactory(t, `{"definitions":{}}`, Options{})
	v := compileNode(t, f, `{"type":"object","properties":{"at":{"type":"string","format":"date-time"}}}`)
	out, err := v.Validate(decode(t, `{"at":"2024-05-01T12:30:00Z"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(map[string]any)["at"].(string); !ok {
		t.Error("date coerced although CoerceDates is off")
	}

	f = mustFactory(t, `{"definitions":{}}`, DefaultOptions())
	v = compileNode(t, f, `{"type":"object","properties":{"at":{"type":"string","format":"date-time","coerce-date":false}}}`)
	out, err = v.Validate(decode(t, `{"at":"2024-05-01T12:30:00Z"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(map[string]any)["at"].(string); !ok {
		t.Error("date coerced although coerce-date is false")
	}
}

func TestValidator_RootCoercion(t *testing.T) {
	f := mustFactory(t, testSchema, DefaultOptions())
	if _, err := f.InterfaceValidator("Stamp"); !errors.Is(err, schema.ErrRootCoercion) {
		t.Errorf("InterfaceValidator(Stamp) error = %v, want ErrRootCoercion", err)
	}

	var n schema.Node
	if err := json.Unmarshal([]byte(`{"anyOf":[{"$ref":"#/definitions/Stamp"},{"type":"null"}]}`), &n); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Compile(&n); !errors.Is(err, schema.ErrRootCoercion) {
		t.Errorf("Compile(anyOf) error = %v, want ErrRootCoercion", err)
	}
}

func TestNewFactory_InvalidCoerceDate(t *testing.T) {
	_, err := NewFactory(mustDoc(t, `{"definitions":{"Bad":{"type":"string","coerce-date":true}}}`), quietOptions(DefaultOptions()))
	if !errors.Is(err, schema.ErrInvalidCoerceDate) {
		t.Errorf("error = %v, want ErrInvalidCoerceDate", err)
	}
}

func TestNewFactory_UnresolvedRef(t *testing.T) {
	_, err := NewFactory(mustDoc(t, `{"definitions":{"A":{"$ref":"#/definitions/Missing"}}}`), quietOptions(DefaultOptions()))
	if !errors.Is(err, schema.ErrUnresolvedRef) {
		t.Errorf("error = %v, want ErrUnresolvedRef", err)
	}
}

func TestNewFactory_InvalidOptions(t *testing.T) {
	_, err := NewFactory(mustDoc(t, `{"definitions":{}}`), Options{Additional: 7})
	if err == nil {
		t.Error("expected invalid options error")
	}
}

func TestValidator_RecursiveDefinition(t *testing.T) {
	f := mustFactory(t, testSchema, DefaultOptions())
	v, err := f.InterfaceValidator("Tree")
	if err != nil {
		t.Fatalf("InterfaceValidator() error = %v", err)
	}
	if _, err := v.Validate(decode(t, `{"value":1,"children":[{"value":2,"children":[{"value":3}]}]}`)); err != nil {
		t.Errorf("valid tree rejected: %v", err)
	}
	_, err = v.Validate(decode(t, `{"value":1,"children":[{"value":2,"children":[{"value":"x"}]}]}`))
	var errs Errors
	if !errors.As(err, &errs) || errs[0].Path != "/children/0/children/0/value" {
		t.Errorf("error = %v, want failure at /children/0/children/0/value", err)
	}
}

func TestValidator_UnionBranchesDoNotMutate(t *testing.T) {
	f := mustFactory(t, `{"definitions":{}}`, DefaultOptions())
	v := compileNode(t, f, `{"type":"object","properties":{"item":{"anyOf":[
		{"type":"object","properties":{"at":{"type":"string","format":"date-time"}},"required":["at","kind"]},
		{"type":"object","properties":{"at":{"type":"string"}}}
	]}}}`)

	out, err := v.Validate(decode(t, `{"item":{"at":"2024-05-01T12:30:00Z"}}`))
	if err != nil {
		t.Fatal(err)
	}
	item := out.(map[string]any)["item"].(map[string]any)
	if _, ok := item["at"].(string); !ok {
		t.Errorf("failed branch leaked its coercion: %#v", item["at"])
	}
}

func TestValidator_Combinators(t *testing.T) {
	f := mustFactory(t, `{"definitions":{}}`, DefaultOptions())
	tests := []struct {
		name  string
		node  string
		value string
		ok    bool
	}{
		{"anyOf match", `{"anyOf":[{"type":"string"},{"type":"number"}]}`, `3`, true},
		{"anyOf miss", `{"anyOf":[{"type":"string"},{"type":"number"}]}`, `true`, false},
		{"oneOf exactly one", `{"oneOf":[{"type":"integer"},{"type":"string"}]}`, `2`, true},
		{"oneOf two match", `{"oneOf":[{"type":"integer"},{"type":"number"}]}`, `2`, false},
		{"allOf", `{"allOf":[{"minimum":1},{"maximum":3}]}`, `4`, false},
		{"not", `{"not":{"type":"null"}}`, `null`, false},
		{"enum", `{"enum":["a",1]}`, `1`, true},
		{"const", `{"const":"x"}`, `"y"`, false},
		{"tuple", `{"type":"array","items":[{"type":"string"},{"type":"number"}]}`, `["a",1,true]`, true},
		{"tuple mismatch", `{"type":"array","items":[{"type":"string"},{"type":"number"}]}`, `[1,"a"]`, false},
		{"maxItems", `{"type":"array","maxItems":1}`, `[1,2]`, false},
		{"pattern", `{"type":"string","pattern":"^[a-z]+$"}`, `"abc"`, true},
		{"multipleOf", `{"type":"number","multipleOf":0.5}`, `1.5`, true},
		{"exclusiveMaximum", `{"type":"number","exclusiveMaximum":2}`, `2`, false},
		{"type list", `{"type":["string","null"]}`, `null`, true},
		{"uuid", `{"type":"string","format":"uuid"}`, `"9b2f6a52-3d4c-4e7a-9a55-0f5c0c7d8e11"`, true},
		{"empty accepts anything", `{}`, `{"x":[1]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileNode(t, f, tt.node)
			_, err := v.Validate(decode(t, tt.value))
			if (err == nil) != tt.ok {
				t.Errorf("Validate(%s) error = %v, want ok=%v", tt.value, err, tt.ok)
			}
		})
	}
}

func TestValidator_Defaults(t *testing.T) {
	f := mustFactory(t, `{"definitions":{}}`, DefaultOptions())
	v := compileNode(t, f, `{"type":"object","properties":{"limit":{"type":"integer","default":10},"tags":{"default":[]}},"required":["limit"]}`)
	out, err := v.Validate(decode(t, `{}`))
	if err != nil {
		t.Fatalf("defaults should satisfy required: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"limit": 10.0, "tags": []any{}}, out); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
}

func TestCheckUnions(t *testing.T) {
	f := mustFactory(t, `{"definitions":{
		"Nullable":{"anyOf":[{"type":"object","additionalProperties":false},{"type":"null"}]},
		"Ambiguous":{"anyOf":[{"type":"object","additionalProperties":false},{"type":"object"}]},
		"Nested":{"type":"object","properties":{"x":{"oneOf":[{"type":"string"},{"type":"object","additionalProperties":false},{"type":"null"}]}}}
	}}`, DefaultOptions())

	err := f.CheckUnions()
	var se *schema.Error
	if !errors.As(err, &se) || se.Code != schema.CodeAmbiguousUnion {
		t.Fatalf("CheckUnions() error = %v, want ambiguous_union", err)
	}
	want := []string{"Ambiguous/anyOf/0", "Nested/properties/x/oneOf/1"}
	if diff := cmp.Diff(want, se.Names); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}

	ok := mustFactory(t, `{"definitions":{"Nullable":{"anyOf":[{"type":"object","additionalProperties":false},{"type":"null"}]}}}`, DefaultOptions())
	if err := ok.CheckUnions(); err != nil {
		t.Errorf("nullable union rejected: %v", err)
	}
}
