package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
)

// Tool names agents may declare.
const (
	ToolReadFile      = "read_file"
	ToolWriteFile     = "write_file"
	ToolListDirectory = "list_directory"
	ToolFindFiles     = "find_files"
)

// maxToolOutput caps the text returned to the model from one tool call.
const maxToolOutput = 100_000

var toolDefinitions = map[string]anthropic.ToolParam{
	ToolReadFile: {
		Name:        ToolReadFile,
		Description: anthropic.String("Read a file of the project. Paths are relative to the project directory."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to read, relative to the project directory",
				},
			},
			Required: []string{"file_path"},
		},
	},
	ToolWriteFile: {
		Name:        ToolWriteFile,
		Description: anthropic.String("Write content to a file of the project. Creates parent directories if needed."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to write, relative to the project directory",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			Required: []string{"file_path", "content"},
		},
	},
	ToolListDirectory: {
		Name:        ToolListDirectory,
		Description: anthropic.String("List the contents of a project directory."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory to list, relative to the project directory (default: the project directory)",
				},
			},
		},
	},
	ToolFindFiles: {
		Name:        ToolFindFiles,
		Description: anthropic.String("Find project files whose name matches a glob pattern, e.g. '*.md'."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Glob pattern matched against file names",
				},
			},
			Required: []string{"pattern"},
		},
	},
}

// ToolNames returns the names of every available tool, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(toolDefinitions))
	for name := range toolDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownTool reports whether name is an available tool.
func KnownTool(name string) bool {
	_, ok := toolDefinitions[name]
	return ok
}

// ToolDefinitions returns the schemas of the named tools. Unknown names
// are skipped.
func ToolDefinitions(names []string) []anthropic.ToolUnionParam {
	var defs []anthropic.ToolUnionParam
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		def, ok := toolDefinitions[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		defs = append(defs, anthropic.ToolUnionParam{OfTool: &def})
	}
	return defs
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Content string
	IsError bool
}

// Tools executes tool calls inside one directory tree.
type Tools struct {
	root string
}

// NewTools creates a tool set confined to root.
func NewTools(root string) *Tools {
	return &Tools{root: root}
}

// Execute runs a tool by name with the given JSON input.
func (t *Tools) Execute(ctx context.Context, name string, input json.RawMessage) ToolResult {
	if err := ctx.Err(); err != nil {
		return ToolResult{Content: err.Error(), IsError: true}
	}
	switch name {
	case ToolReadFile:
		return t.readFile(input)
	case ToolWriteFile:
		return t.writeFile(input)
	case ToolListDirectory:
		return t.listDirectory(input)
	case ToolFindFiles:
		return t.findFiles(input)
	default:
		return ToolResult{Content: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
	}
}

// resolve maps a model-supplied path into the sandbox.
func (t *Tools) resolve(path string) (string, error) {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(t.root, path)
	}
	if !fsutil.IsSafePath(t.root, full) {
		return "", fmt.Errorf("path %q is outside the project", path)
	}
	return full, nil
}

func (t *Tools) readFile(input json.RawMessage) ToolResult {
	var params struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
	}
	path, err := t.resolve(params.FilePath)
	if err != nil {
		return ToolResult{Content: err.Error(), IsError: true}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to read file: %v", err), IsError: true}
	}
	return ToolResult{Content: truncate(string(content))}
}

func (t *Tools) writeFile(input json.RawMessage) ToolResult {
	var params struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
	}
	path, err := t.resolve(params.FilePath)
	if err != nil {
		return ToolResult{Content: err.Error(), IsError: true}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to create directory: %v", err), IsError: true}
	}
	if err := os.WriteFile(path, []byte(params.Content), 0644); err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to write file: %v", err), IsError: true}
	}
	return ToolResult{Content: fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), params.FilePath)}
}

func (t *Tools) listDirectory(input json.RawMessage) ToolResult {
	var params struct {
		Path string `json:"path"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
		}
	}
	dir, err := t.resolve(params.Path)
	if err != nil {
		return ToolResult{Content: err.Error(), IsError: true}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to list directory: %v", err), IsError: true}
	}

	var b strings.Builder
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return ToolResult{Content: "(empty directory)"}
	}
	return ToolResult{Content: b.String()}
}

func (t *Tools) findFiles(input json.RawMessage) ToolResult {
	var params struct {
		Pattern string `json:"pattern"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return ToolResult{Content: fmt.Sprintf("Invalid parameters: %v", err), IsError: true}
	}
	if _, err := filepath.Match(params.Pattern, ""); err != nil {
		return ToolResult{Content: fmt.Sprintf("Invalid pattern: %v", err), IsError: true}
	}

	var matches []string
	err := filepath.WalkDir(t.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(params.Pattern, d.Name()); ok {
			rel, relErr := filepath.Rel(t.root, path)
			if relErr != nil {
				return relErr
			}
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return ToolResult{Content: fmt.Sprintf("Failed to search: %v", err), IsError: true}
	}
	if len(matches) == 0 {
		return ToolResult{Content: "No files found"}
	}
	return ToolResult{Content: truncate(strings.Join(matches, "\n"))}
}

func truncate(s string) string {
	if len(s) > maxToolOutput {
		return s[:maxToolOutput] + "\n... (truncated)"
	}
	return s
}
