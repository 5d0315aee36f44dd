package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/pkg/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newNewCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Scaffold a workflow definition",
		Long: `Write <name>_statuses.yaml with a starter topology:
DRAFT -> PENDING_APPROVAL -> APPROVED, where the second step requires the
"approve" permission and PENDING_APPROVAL rejects to REJECTED.

An existing file is never overwritten.

Examples:
  approvalctl new PurchaseOrder
  approvalctl new expense-report --dir configs/workflows`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := scaffold(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write the definition into")
	return cmd
}

// scaffold writes the starter definition for name into dir and returns its path
func scaffold(dir, name string) (string, error) {
	entityType := utils.ToSnakeCase(name)
	if err := utils.ValidateIdentifier("name", entityType); err != nil {
		return "", err
	}

	path := filepath.Join(dir, entityType+"_statuses.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(workflow.ScaffoldDefinition(entityType)); err != nil {
		return "", fmt.Errorf("encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode definition: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	// O_EXCL keeps a concurrent writer from being clobbered
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
