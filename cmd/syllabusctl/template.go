package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/syllabus-templates/internal/export"
	"github.com/joseph-ayodele/syllabus-templates/internal/materialize"
	repo "github.com/joseph-ayodele/syllabus-templates/internal/repository"
)

func materializeCmd(a *app) *cobra.Command {
	var name, createdBy string
	cmd := &cobra.Command{
		Use:   "materialize <session>",
		Short: "Create a template from a fully grouped session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.materialize.Materialize(cmd.Context(), args[0], materialize.Options{
				Name:      name,
				CreatedBy: optional(createdBy),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Template name (default: source file name)")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Acting user recorded on the template")
	return cmd
}

func templateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Inspect, clone and export templates"}

	show := &cobra.Command{
		Use:   "show <template>",
		Short: "Print a template with its sections and fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.materialize.GetTemplate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}

	var category string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repo.TemplateFilter{Limit: limit}
			if category != "" {
				cat, err := parseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = cat
			}
			ts, err := a.materialize.ListTemplates(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, ts)
		},
	}
	list.Flags().StringVar(&category, "category", "", "Only templates of this category")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum templates to list")

	var cloneName, cloneBy string
	clone := &cobra.Command{
		Use:   "clone <template>",
		Short: "Copy a template under new ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.materialize.CloneTemplate(cmd.Context(), id, cloneName, optional(cloneBy))
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
	clone.Flags().StringVar(&cloneName, "name", "", "Name of the copy")
	clone.Flags().StringVar(&cloneBy, "created-by", "", "Acting user recorded on the copy")

	del := &cobra.Command{
		Use:   "delete <template>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.materialize.DeleteTemplate(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}

	var out string
	exp := &cobra.Command{
		Use:   "export <template>",
		Short: "Write a blank XLSX form for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.export.TemplateXLSX(cmd.Context(), id)
			if err != nil {
				return err
			}
			if out == "" {
				out = id.String() + ".xlsx"
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(b))
			return nil
		},
	}
	exp.Flags().StringVarP(&out, "out", "o", "", "Output file (default: <template>.xlsx)")

	schemaCmd := &cobra.Command{
		Use:   "schema <template>",
		Short: "Print the JSON Schema filled values must satisfy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.materialize.GetTemplate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, export.ValuesSchema(t))
		},
	}

	validate := &cobra.Command{
		Use:   "validate <template> <values.json>",
		Short: "Check a filled values document against a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.materialize.GetTemplate(cmd.Context(), id)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			if err := export.ValidateValues(t, data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.AddCommand(show, list, clone, del, exp, schemaCmd, validate)
	return cmd
}
