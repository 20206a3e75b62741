package main

import (
	"fmt"
	"strings"

	"github.com/gogotex/docstore/internal/acl"
	"github.com/spf13/cobra"
)

func newACLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Inspect permission files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Compile every predicate in a permission file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := acl.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: roles %s\n", strings.Join(engine.Roles(), ", "))
			return nil
		},
	})
	return cmd
}
