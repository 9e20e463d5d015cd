package provider

import (
	"encoding/json"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// HasSchema reports whether a tool descriptor carries a real argument
// schema. Descriptors without one degrade to placeholderProperties, which
// vendors accept but which gives the model no argument guidance; the
// orchestrator logs that gap at startup.
func HasSchema(t mcptypes.Tool) bool {
	return t.InputSchema.Type != "" || len(t.InputSchema.Properties) > 0
}

func schemaOrPlaceholder(t mcptypes.Tool) mcptypes.ToolInputSchema {
	if HasSchema(t) {
		s := t.InputSchema
		if s.Type == "" {
			s.Type = "object"
		}
		return s
	}
	return mcptypes.ToolInputSchema{Type: "object", Properties: map[string]any{}}
}

// WarnMissingSchemas logs one warning per schema-less tool in the
// catalog. Argument-schema generation from handler signatures is an
// unimplemented extension point, not silent breakage.
func WarnMissingSchemas(catalog []mcptypes.Tool) {
	for _, t := range catalog {
		if !HasSchema(t) {
			slog.Warn("tool has no argument schema, sending placeholder to provider", "tool", t.Name)
		}
	}
}

// convertToolsToOllama converts the neutral catalog to Ollama's tool
// format.
func convertToolsToOllama(catalog []mcptypes.Tool) []api.Tool {
	if len(catalog) == 0 {
		return nil
	}

	ollamaTools := make([]api.Tool, 0, len(catalog))
	for _, t := range catalog {
		schema := schemaOrPlaceholder(t)
		params := api.ToolFunctionParameters{
			Type:       schema.Type,
			Required:   schema.Required,
			Properties: make(map[string]api.ToolProperty),
		}
		if schema.Defs != nil {
			params.Defs = schema.Defs
		}
		for name, value := range schema.Properties {
			params.Properties[name] = convertOllamaProperty(value)
		}

		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return ollamaTools
}

func convertOllamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}

	propMap, ok := value.(map[string]any)
	if !ok {
		// Not a map; round-trip through JSON to get one.
		bytes, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return prop
		}
		propMap = m
	}

	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			prop.Type = api.PropertyType{t}
		case []string:
			prop.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			prop.Type = api.PropertyType(types)
		}
	}
	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enumVal, ok := propMap["enum"].([]any); ok {
		prop.Enum = enumVal
	}
	if items, ok := propMap["items"]; ok {
		prop.Items = items
	}
	return prop
}

// convertToolsToOpenAI converts the neutral catalog to the
// OpenAI-compatible function-tool format shared by OpenAI, Perplexity,
// Together and Mistral.
func convertToolsToOpenAI(catalog []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(catalog) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(catalog))
	for i, t := range catalog {
		schema := schemaOrPlaceholder(t)
		params := openai.FunctionParameters{
			"type":       schema.Type,
			"properties": schema.Properties,
		}
		if len(schema.Required) > 0 {
			params["required"] = schema.Required
		}
		if schema.Defs != nil {
			params["$defs"] = schema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		)
	}
	return result
}

// convertToolsToAnthropic converts the neutral catalog to Anthropic's
// tool format.
func convertToolsToAnthropic(catalog []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(catalog) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(catalog))
	for i, t := range catalog {
		schema := schemaOrPlaceholder(t)
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
		}
		if len(schema.Required) > 0 {
			inputSchema.Required = schema.Required
		}
		if schema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{"$defs": schema.Defs}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if t.Description != "" {
			result[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return result
}

// convertToolsToGemini converts the neutral catalog to Gemini function
// declarations, all carried in a single genai.Tool.
func convertToolsToGemini(catalog []mcptypes.Tool) []*genai.Tool {
	if len(catalog) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(catalog))
	for _, t := range catalog {
		schema := schemaOrPlaceholder(t)
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertGeminiSchema(schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertGeminiSchema(schema mcptypes.ToolInputSchema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema),
		Required:   schema.Required,
	}
	for name, value := range schema.Properties {
		out.Properties[name] = convertGeminiProperty(value)
	}
	return out
}

func convertGeminiProperty(value any) *genai.Schema {
	prop := &genai.Schema{Type: genai.TypeString}

	propMap, ok := value.(map[string]any)
	if !ok {
		return prop
	}
	if typeVal, ok := propMap["type"].(string); ok {
		switch typeVal {
		case "string":
			prop.Type = genai.TypeString
		case "integer":
			prop.Type = genai.TypeInteger
		case "number":
			prop.Type = genai.TypeNumber
		case "boolean":
			prop.Type = genai.TypeBoolean
		case "array":
			prop.Type = genai.TypeArray
			if items, ok := propMap["items"].(map[string]any); ok {
				prop.Items = convertGeminiProperty(items)
			}
		case "object":
			prop.Type = genai.TypeObject
		}
	}
	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enumVal, ok := propMap["enum"].([]any); ok {
		for _, e := range enumVal {
			if s, ok := e.(string); ok {
				prop.Enum = append(prop.Enum, s)
			}
		}
	}
	return prop
}
