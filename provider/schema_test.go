package provider

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func sampleCatalog() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "read_file",
			Description: "Read a vault file",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "Path relative to the vault root",
					},
					"limit": map[string]any{
						"type": "integer",
					},
				},
				Required: []string{"file_path"},
			},
		},
		{
			// Schema-less descriptor; must degrade to a placeholder.
			Name:        "bare_tool",
			Description: "A tool without an argument schema",
		},
	}
}

func TestHasSchema(t *testing.T) {
	catalog := sampleCatalog()
	if !HasSchema(catalog[0]) {
		t.Error("HasSchema() = false for tool with a real schema")
	}
	if HasSchema(catalog[1]) {
		t.Error("HasSchema() = true for schema-less tool")
	}
}

func TestConvertToolsToOllama(t *testing.T) {
	out := convertToolsToOllama(sampleCatalog())
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	readFile := out[0]
	if readFile.Type != "function" || readFile.Function.Name != "read_file" {
		t.Errorf("unexpected tool header: %+v", readFile)
	}
	params := readFile.Function.Parameters
	if params.Type != "object" {
		t.Errorf("parameters type = %q", params.Type)
	}
	if len(params.Required) != 1 || params.Required[0] != "file_path" {
		t.Errorf("required = %v", params.Required)
	}
	prop, ok := params.Properties["file_path"]
	if !ok {
		t.Fatal("file_path property missing")
	}
	if len(prop.Type) != 1 || prop.Type[0] != "string" {
		t.Errorf("file_path type = %v", prop.Type)
	}
	if prop.Description != "Path relative to the vault root" {
		t.Errorf("file_path description = %q", prop.Description)
	}

	// Placeholder degradation.
	bare := out[1].Function.Parameters
	if bare.Type != "object" || len(bare.Properties) != 0 {
		t.Errorf("schema-less tool parameters = %+v, want empty object", bare)
	}
}

func TestConvertToolsToOpenAI(t *testing.T) {
	out := convertToolsToOpenAI(sampleCatalog())
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	fn := out[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool")
	}
	if fn.Function.Name != "read_file" {
		t.Errorf("name = %q", fn.Function.Name)
	}
	params := fn.Function.Parameters
	if params["type"] != "object" {
		t.Errorf("parameters type = %v", params["type"])
	}
	if _, ok := params["required"]; !ok {
		t.Error("required list dropped")
	}

	bare := out[1].OfFunction.Function.Parameters
	if _, ok := bare["required"]; ok {
		t.Error("placeholder schema must not carry required")
	}
	props, ok := bare["properties"].(map[string]any)
	if !ok || len(props) != 0 {
		t.Errorf("placeholder properties = %v, want empty object", bare["properties"])
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	out := convertToolsToAnthropic(sampleCatalog())
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	tool := out[0].OfTool
	if tool == nil {
		t.Fatal("expected OfTool variant")
	}
	if tool.Name != "read_file" {
		t.Errorf("name = %q", tool.Name)
	}
	if len(tool.InputSchema.Required) != 1 {
		t.Errorf("required = %v", tool.InputSchema.Required)
	}
	if tool.Description.Value != "Read a vault file" {
		t.Errorf("description = %q", tool.Description.Value)
	}
}

func TestConvertToolsToGemini(t *testing.T) {
	out := convertToolsToGemini(sampleCatalog())
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1 tool carrying all declarations", len(out))
	}
	decls := out[0].FunctionDeclarations
	if len(decls) != 2 {
		t.Fatalf("declarations = %d, want 2", len(decls))
	}

	readFile := decls[0]
	if readFile.Name != "read_file" {
		t.Errorf("name = %q", readFile.Name)
	}
	if readFile.Parameters == nil || len(readFile.Parameters.Properties) != 2 {
		t.Fatalf("parameters = %+v", readFile.Parameters)
	}
	if readFile.Parameters.Properties["file_path"].Description == "" {
		t.Error("file_path description dropped")
	}

	bare := decls[1]
	if bare.Parameters == nil || len(bare.Parameters.Properties) != 0 {
		t.Errorf("schema-less declaration parameters = %+v", bare.Parameters)
	}
}

func TestConvertToolsToCohere(t *testing.T) {
	out := convertToolsToCohere(sampleCatalog())
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	defs := out[0].ParameterDefinitions
	fp, ok := defs["file_path"]
	if !ok {
		t.Fatal("file_path definition missing")
	}
	if fp.Type != "str" || !fp.Required {
		t.Errorf("file_path spec = %+v", fp)
	}
	if limit := defs["limit"]; limit.Type != "int" || limit.Required {
		t.Errorf("limit spec = %+v", limit)
	}

	if len(out[1].ParameterDefinitions) != 0 {
		t.Errorf("schema-less tool definitions = %v, want empty", out[1].ParameterDefinitions)
	}
}

func TestConvertEmptyCatalogs(t *testing.T) {
	if convertToolsToOllama(nil) != nil {
		t.Error("ollama conversion of empty catalog should be nil")
	}
	if convertToolsToOpenAI(nil) != nil {
		t.Error("openai conversion of empty catalog should be nil")
	}
	if convertToolsToAnthropic(nil) != nil {
		t.Error("anthropic conversion of empty catalog should be nil")
	}
	if convertToolsToGemini(nil) != nil {
		t.Error("gemini conversion of empty catalog should be nil")
	}
	if convertToolsToCohere(nil) != nil {
		t.Error("cohere conversion of empty catalog should be nil")
	}
}
