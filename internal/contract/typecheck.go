package contract

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runTypeCheck invokes `go vet` against a focused temp package containing
// just the contract and implementation files, the Go analogue of the
// Python tier's mypy subprocess call. Import-resolution errors are ignored
// since Tier 1 already verified structural adequacy — mirroring the
// Python tier's explicit "import-not-found" filter.
func runTypeCheck(ctx context.Context, implPath, contractPath string, timeout time.Duration) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "sunwell-contract-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	for _, src := range []string{implPath, contractPath} {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return nil, err
		}
	}
	// A standalone go.mod lets `go vet` treat the temp dir as its own
	// module; real import paths from the original sources still won't
	// resolve here, which is exactly what isImportResolutionError filters.
	modContent := "module sunwell-contract-scratch\n\ngo 1.23\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(modContent), 0644); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "go", "vet", ".")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// A non-zero exit just means vet found something; errors are parsed from
	// stderr. Any other failure (no go binary, timeout) means the checker
	// itself couldn't run.
	if err := cmd.Run(); err != nil {
		if _, exited := err.(*exec.ExitError); !exited || ctx.Err() != nil {
			return nil, err
		}
	}

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	var errs []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		if isImportResolutionError(line) {
			continue
		}
		errs = append(errs, line)
	}
	return errs, nil
}

func isImportResolutionError(line string) bool {
	return strings.Contains(line, "cannot find package") ||
		strings.Contains(line, "no required module") ||
		strings.Contains(line, "cannot find module") ||
		strings.Contains(line, "cannot find main module") ||
		strings.Contains(line, "no Go files") ||
		strings.Contains(line, "missing go.sum entry")
}
