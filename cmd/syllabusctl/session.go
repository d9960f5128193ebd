package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/syllabus-templates/constants"
	"github.com/joseph-ayodele/syllabus-templates/internal/entity"
)

func sessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Inspect extraction sessions"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ss, err := a.sessions.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, ss)
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list")

	show := &cobra.Command{
		Use:   "show <session>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.sessions.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	cmd.AddCommand(list, show)
	return cmd
}

func candidatesCmd(a *app) *cobra.Command {
	var (
		roles     []string
		minScore  int
		ungrouped bool
	)
	cmd := &cobra.Command{
		Use:   "candidates <session>",
		Short: "List a session's candidates in document order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := entity.CandidateFilter{UngroupedOnly: ungrouped}
			for _, r := range roles {
				filter.Roles = append(filter.Roles, constants.Role(r))
			}
			if cmd.Flags().Changed("min-score") {
				filter.MinScore = &minScore
			}
			cs, err := a.sessions.ListCandidates(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, cs)
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Only these roles: header, section_title, field")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Only candidates scoring at least this much")
	cmd.Flags().BoolVar(&ungrouped, "ungrouped", false, "Only candidates no grouping owns")
	return cmd
}

func recleanseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recleanse <session>",
		Short: "Re-apply text normalization to every candidate title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.sessions.Recleanse(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"session_id": args[0], "changed": n})
		},
	}
}

func archiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <session>",
		Short: "Archive a session, dropping its candidates and groupings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.Archive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		},
	}
}

func purgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete sessions whose expiry has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := a.sessions.PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"purged": ids})
		},
	}
}
