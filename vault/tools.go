package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"geode/tools"
)

// Tools returns the built-in vault tools. Handlers never return an error:
// every vault failure is converted into a human-readable "ERROR: ..."
// string so the model always receives data it can read and explain.
func Tools(client *Client) []*tools.Tool {
	return []*tools.Tool{
		{
			Name:        "list_files",
			Description: "List files and folders in a directory of the note vault. Folders are suffixed with '/'.",
			Schema: objectSchema(map[string]any{
				"directory": map[string]any{
					"type":        "string",
					"description": "Directory path relative to the vault root. Defaults to the root.",
				},
			}, nil),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return listFiles(ctx, client, stringArg(args, "directory", ".")), nil
			},
		},
		{
			Name:        "list_all_files",
			Description: "List every file and folder in the vault recursively, starting from the root.",
			Schema:      objectSchema(map[string]any{}, nil),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return listAllFiles(ctx, client), nil
			},
		},
		{
			Name:        "read_file",
			Description: "Read the full contents of a file from the vault.",
			Schema: objectSchema(map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of the file to read, relative to the vault root.",
				},
			}, []string{"file_path"}),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				path, ok := requireString(args, "file_path")
				if !ok {
					return "ERROR: Missing required argument 'file_path'.", nil
				}
				return readFile(ctx, client, path), nil
			},
		},
		{
			Name:        "create_or_update_file",
			Description: "Create a new file or completely overwrite an existing file in the vault.",
			Schema: objectSchema(map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path where the file should be created or updated.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Markdown content to write.",
				},
			}, []string{"file_path", "content"}),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				path, ok := requireString(args, "file_path")
				if !ok {
					return "ERROR: Missing required argument 'file_path'.", nil
				}
				content, _ := args["content"].(string)
				return writeFile(ctx, client, path, content), nil
			},
		},
		{
			Name:        "delete_file",
			Description: "Delete a file from the vault. This is permanent and cannot be undone.",
			Schema: objectSchema(map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of the file to delete.",
				},
			}, []string{"file_path"}),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				path, ok := requireString(args, "file_path")
				if !ok {
					return "ERROR: Missing required argument 'file_path'.", nil
				}
				return deleteFile(ctx, client, path), nil
			},
		},
		{
			Name:        "get_vault_info",
			Description: "Get the name, path and version of the note vault.",
			Schema:      objectSchema(map[string]any{}, nil),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return vaultInfo(ctx, client), nil
			},
		},
	}
}

func objectSchema(props map[string]any, required []string) mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func requireString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func listFiles(ctx context.Context, client *Client, directory string) string {
	listing, err := client.List(ctx, directory)
	if err != nil {
		slog.Error("failed to list vault directory", "directory", directory, "error", err)
		return fmt.Sprintf("ERROR: Could not list files in '%s'. Reason: %v", directory, err)
	}

	items := make([]string, 0, len(listing.Subfolders)+len(listing.Files))
	for _, folder := range listing.Subfolders {
		items = append(items, folder+"/")
	}
	items = append(items, listing.Files...)
	sort.Strings(items)

	if len(items) == 0 {
		return fmt.Sprintf("SUCCESS: The directory '%s' is empty.", directory)
	}
	return "SUCCESS:\n" + strings.Join(items, "\n")
}

func listAllFiles(ctx context.Context, client *Client) string {
	seen := make(map[string]bool)

	var walk func(dir string)
	walk = func(dir string) {
		listing, err := client.List(ctx, dir)
		if err != nil {
			slog.Warn("could not fully scan vault", "directory", dir, "error", err)
			return
		}

		prefix := ""
		if dir != "." {
			prefix = strings.TrimRight(dir, "/") + "/"
		}
		for _, folder := range listing.Subfolders {
			full := prefix + folder + "/"
			seen[full] = true
			walk(strings.TrimRight(full, "/"))
		}
		for _, file := range listing.Files {
			seen[prefix+file] = true
		}
	}
	walk(".")

	if len(seen) == 0 {
		return "ERROR: No files or folders found in the vault, or the vault root could not be read."
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return "SUCCESS:\n" + strings.Join(paths, "\n")
}

func readFile(ctx context.Context, client *Client, path string) string {
	content, err := client.Read(ctx, path)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return fmt.Sprintf("ERROR: The file '%s' was not found in the vault.", path)
		}
		slog.Error("failed to read vault file", "path", path, "error", err)
		return fmt.Sprintf("ERROR: Could not read file. Reason: %v", err)
	}
	return content
}

func writeFile(ctx context.Context, client *Client, path, content string) string {
	if err := client.Write(ctx, path, content); err != nil {
		slog.Error("failed to write vault file", "path", path, "error", err)
		return fmt.Sprintf("ERROR: Could not write to file. Reason: %v", err)
	}
	slog.Info("vault file saved", "path", path)
	return fmt.Sprintf("SUCCESS: The file '%s' was saved successfully.", path)
}

func deleteFile(ctx context.Context, client *Client, path string) string {
	if err := client.Delete(ctx, path); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return fmt.Sprintf("ERROR: Could not delete the file '%s' because it was not found.", path)
		}
		slog.Error("failed to delete vault file", "path", path, "error", err)
		return fmt.Sprintf("ERROR: Could not delete file. Reason: %v", err)
	}
	slog.Info("vault file deleted", "path", path)
	return fmt.Sprintf("SUCCESS: The file '%s' was deleted.", path)
}

func vaultInfo(ctx context.Context, client *Client) string {
	info, err := client.Info(ctx)
	if err != nil {
		slog.Error("failed to get vault info", "error", err)
		return fmt.Sprintf("ERROR: Could not get vault information. Reason: %v", err)
	}
	return fmt.Sprintf("SUCCESS: Vault Information:\nname: %s\npath: %s\nversion: %s",
		info.Name, info.Path, info.Version)
}
