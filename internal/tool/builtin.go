package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
)

// WriteFileTool creates or overwrites a file under a workspace root.
type WriteFileTool struct {
	WorkspaceRoot string
}

func (WriteFileTool) Name() string           { return "write_file" }
func (WriteFileTool) Description() string    { return description("write_file") }
func (WriteFileTool) Schema() map[string]any { return jsonSchema("write_file") }

func (t WriteFileTool) Execute(ctx context.Context, call Call) (Result, error) {
	path, _ := call.Arguments["path"].(string)
	content, _ := call.Arguments["content"].(string)
	if path == "" {
		return Result{}, kernelerr.New(kernelerr.ToolInvalidArguments, "write_file requires a path", nil)
	}
	full, err := resolveWithin(t.WorkspaceRoot, path)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return Result{}, kernelerr.New(kernelerr.IOWriteFailed, "creating parent directory", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return Result{}, kernelerr.New(kernelerr.IOWriteFailed, "writing file", err).WithContext("path", path)
	}
	return Result{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path), Artifacts: []string{path}}, nil
}

// EditFileTool applies an exact string replacement within an existing file.
type EditFileTool struct {
	WorkspaceRoot string
}

func (EditFileTool) Name() string           { return "edit_file" }
func (EditFileTool) Description() string    { return description("edit_file") }
func (EditFileTool) Schema() map[string]any { return jsonSchema("edit_file") }

func (t EditFileTool) Execute(ctx context.Context, call Call) (Result, error) {
	path, _ := call.Arguments["path"].(string)
	oldStr, _ := call.Arguments["old_string"].(string)
	newStr, _ := call.Arguments["new_string"].(string)
	full, err := resolveWithin(t.WorkspaceRoot, path)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Result{}, kernelerr.New(kernelerr.IOFileNotFound, "reading file to edit", err).WithContext("path", path)
	}
	content := string(data)
	count := strings.Count(content, oldStr)
	if count == 0 {
		return Result{}, kernelerr.New(kernelerr.ToolExecutionFailed, "old_string not found in file", nil).WithContext("path", path)
	}
	if count > 1 {
		return Result{}, kernelerr.New(kernelerr.ToolExecutionFailed, "old_string is not unique in file", nil).
			WithContext("path", path).WithContext("occurrences", count)
	}
	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(full, []byte(updated), 0644); err != nil {
		return Result{}, kernelerr.New(kernelerr.IOWriteFailed, "writing edited file", err)
	}
	return Result{Success: true, Output: "edit applied", Artifacts: []string{path}}, nil
}

// ReadFileTool reads a file's full content.
type ReadFileTool struct {
	WorkspaceRoot string
}

func (ReadFileTool) Name() string           { return "read_file" }
func (ReadFileTool) Description() string    { return description("read_file") }
func (ReadFileTool) Schema() map[string]any { return jsonSchema("read_file") }

func (t ReadFileTool) Execute(ctx context.Context, call Call) (Result, error) {
	path, _ := call.Arguments["path"].(string)
	full, err := resolveWithin(t.WorkspaceRoot, path)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Result{}, kernelerr.New(kernelerr.IOFileNotFound, "reading file", err).WithContext("path", path)
	}
	return Result{Success: true, Output: string(data)}, nil
}

// CodebaseSearchTool is the RESEARCH mode's tool: a plain-text grep over
// the workspace, standing in for a semantic search backend (out of the
// kernel's scope — treats it as an opaque collaborator).
type CodebaseSearchTool struct {
	WorkspaceRoot string
}

func (CodebaseSearchTool) Name() string           { return "codebase_search" }
func (CodebaseSearchTool) Description() string    { return description("codebase_search") }
func (CodebaseSearchTool) Schema() map[string]any { return jsonSchema("codebase_search") }

func (t CodebaseSearchTool) Execute(ctx context.Context, call Call) (Result, error) {
	query, _ := call.Arguments["query"].(string)
	if query == "" {
		return Result{}, kernelerr.New(kernelerr.ToolInvalidArguments, "codebase_search requires a query", nil)
	}
	var matches []string
	err := filepath.WalkDir(t.WorkspaceRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if strings.Contains(string(data), query) {
			rel, _ := filepath.Rel(t.WorkspaceRoot, path)
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return Result{}, kernelerr.New(kernelerr.ToolExecutionFailed, "walking workspace", err)
	}
	if len(matches) == 0 {
		return Result{Success: false, Output: ""}, nil
	}
	return Result{Success: true, Output: strings.Join(matches, "\n")}, nil
}

// ShellTool invokes a shell command within the workspace, the backing for
// COMMAND-mode task dispatch.
type ShellTool struct {
	WorkspaceRoot string
}

func (ShellTool) Name() string           { return "shell" }
func (ShellTool) Description() string    { return description("shell") }
func (ShellTool) Schema() map[string]any { return jsonSchema("shell") }

func (t ShellTool) Execute(ctx context.Context, call Call) (Result, error) {
	command, _ := call.Arguments["command"].(string)
	if command == "" {
		return Result{}, kernelerr.New(kernelerr.ToolInvalidArguments, "shell requires a command", nil)
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.WorkspaceRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}
	if err != nil {
		return Result{Success: false, Output: output}, kernelerr.New(kernelerr.ToolExecutionFailed, "shell command failed", err).
			WithContext("command", command)
	}
	return Result{Success: true, Output: output}, nil
}

// resolveWithin joins root and rel, rejecting any path that escapes root —
// every file tool's write surface must stay inside the workspace.
func resolveWithin(root, rel string) (string, error) {
	full := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", kernelerr.New(kernelerr.ToolPermissionDenied, "path escapes workspace root", nil).WithContext("path", rel)
	}
	return full, nil
}

// RegisterBuiltins adds every built-in tool to r, rooted at workspaceRoot.
func RegisterBuiltins(r *Registry, workspaceRoot string) {
	r.Register(WriteFileTool{WorkspaceRoot: workspaceRoot})
	r.Register(EditFileTool{WorkspaceRoot: workspaceRoot})
	r.Register(ReadFileTool{WorkspaceRoot: workspaceRoot})
	r.Register(CodebaseSearchTool{WorkspaceRoot: workspaceRoot})
	r.Register(ShellTool{WorkspaceRoot: workspaceRoot})
}
