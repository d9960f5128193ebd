package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/syllabus-templates/internal/common"
	"github.com/joseph-ayodele/syllabus-templates/internal/grouping"
)

func groupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Assemble candidates into ordered tabs"}
	cmd.AddCommand(
		groupCreateCmd(a),
		groupListCmd(a),
		groupUpdateCmd(a),
		groupDeleteCmd(a),
		groupAddCmd(a),
		groupRemoveCmd(a),
		groupMoveCmd(a),
		groupReorderCmd(a),
		groupAutoCmd(a),
	)
	return cmd
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, common.InvalidInput("invalid id %q", r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidInput("invalid id %q", raw)
	}
	return id, nil
}

func groupCreateCmd(a *app) *cobra.Command {
	var (
		in          grouping.CreateInput
		description string
		candidates  []string
	)
	cmd := &cobra.Command{
		Use:   "create <session>",
		Short: "Create a tab owning the given candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(candidates)
			if err != nil {
				return err
			}
			in.CandidateIDs = ids
			in.Description = optional(description)
			g, err := a.groupings.Create(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printJSON(cmd, g)
		},
	}
	cmd.Flags().StringVar(&in.TabName, "name", "", "Tab name")
	cmd.Flags().StringVar(&description, "description", "", "Tab description")
	cmd.Flags().IntVar(&in.DisplayOrder, "order", 0, "Display order, unique within the session")
	cmd.Flags().StringVar(&in.Color, "color", "", "Hex color such as #4f46e5")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "Icon name")
	cmd.Flags().StringSliceVar(&candidates, "candidates", nil, "Candidate ids, in tab order")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func groupListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <session>",
		Short: "List a session's tabs in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gs, err := a.groupings.ListGroupings(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, gs)
		},
	}
}

func groupUpdateCmd(a *app) *cobra.Command {
	var name, description, color, icon string
	cmd := &cobra.Command{
		Use:   "update <grouping>",
		Short: "Change a tab's name, description, color or icon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in grouping.UpdateInput
			set := func(flag string, v *string) *string {
				if cmd.Flags().Changed(flag) {
					return v
				}
				return nil
			}
			in.TabName = set("name", &name)
			in.Description = set("description", &description)
			in.Color = set("color", &color)
			in.Icon = set("icon", &icon)
			g, err := a.groupings.UpdateGrouping(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return printJSON(cmd, g)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Tab name")
	cmd.Flags().StringVar(&description, "description", "", "Tab description; empty clears it")
	cmd.Flags().StringVar(&color, "color", "", "Hex color")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon name")
	return cmd
}

func groupDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <grouping>",
		Short: "Delete a tab and release its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.groupings.DeleteGrouping(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}
}

func groupAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <grouping> <candidate>...",
		Short: "Append ungrouped candidates to a tab",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			g, err := a.groupings.AddCandidates(cmd.Context(), gid, ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, g)
		},
	}
}

func groupRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <grouping> <candidate>...",
		Short: "Release candidates from a tab",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := parseID(args[0])
			if err != nil {
				return err
			}
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			g, err := a.groupings.RemoveCandidates(cmd.Context(), gid, ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, g)
		},
	}
}

func groupMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to> <candidate>...",
		Short: "Move candidates between two tabs of one session",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			from, to, err := a.groupings.MoveCandidates(cmd.Context(), ids[0], ids[1], ids[2:])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"from": from, "to": to})
		},
	}
}

func groupReorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <session> <grouping>...",
		Short: "Set tab order; every tab of the session must be listed once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			gs, err := a.groupings.ReorderGroupings(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, gs)
		},
	}
}

func groupAutoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auto <session>",
		Short: "Suggest tabs for ungrouped candidates, one per section title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gs, err := a.groupings.AutoGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, gs)
		},
	}
}
