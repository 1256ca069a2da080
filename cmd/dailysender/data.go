package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dailysender/internal/app"
	"dailysender/internal/content"
	"dailysender/internal/schedule"
)

const previewLen = 48

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage message groups",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List message groups with their indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, func(_ context.Context, _ *app.App, s *app.Stores) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tIMAGE\tBUTTONS\tMESSAGE")
				for i, g := range s.Groups.List() {
					fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i, orDash(g.ImageRef), len(g.Buttons), preview(g.Text))
				}
				return w.Flush()
			})
		},
	}

	var image string
	var buttons []string
	add := &cobra.Command{
		Use:   "add <message>",
		Short: "Append a message group",
		Long: `Append a message group. The message may contain <ce:ID> custom emoji
placeholders. Each --button is "text|url" for a link or "text" for a callback.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd, func(_ context.Context, _ *app.App, s *app.Stores) error {
				g, err := s.Groups.Add(content.Group{
					Text:     strings.Join(args, " "),
					ImageRef: image,
					Buttons:  content.ParseButtons(strings.Join(buttons, "\n")),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added group %d: %s\n", s.Groups.Len()-1, preview(g.Text))
				return nil
			})
		},
	}
	add.Flags().StringVar(&image, "image", "", "image file name inside DATA_DIR/media")
	add.Flags().StringArrayVar(&buttons, "button", nil, `button as "text|url" or "text" (repeatable)`)

	rm := &cobra.Command{
		Use:   "rm <index>",
		Short: "Delete the group at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index %q is not a number", args[0])
			}
			return withStores(cmd, func(_ context.Context, _ *app.App, s *app.Stores) error {
				if err := s.Groups.Delete(idx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted group %d, %d left\n", idx, s.Groups.Len())
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newSchedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage daily send times",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List send times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, func(_ context.Context, a *app.App, s *app.Stores) error {
				printTriggers(cmd, a, s.Schedules.List())
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <HH:MM>",
		Short: "Add a send time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := schedule.ParseTrigger(args[0])
			if err != nil {
				return err
			}
			return withStores(cmd, func(_ context.Context, a *app.App, s *app.Stores) error {
				if err := s.Schedules.Add(t.Hour, t.Minute); err != nil {
					return err
				}
				printTriggers(cmd, a, s.Schedules.List())
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <HH:MM>",
		Short: "Remove a send time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := schedule.ParseTrigger(args[0])
			if err != nil {
				return err
			}
			return withStores(cmd, func(_ context.Context, a *app.App, s *app.Stores) error {
				if err := s.Schedules.Remove(t.Hour, t.Minute); err != nil {
					return err
				}
				printTriggers(cmd, a, s.Schedules.List())
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func newRecipientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipients",
		Aliases: []string{"users"},
		Short:   "Inspect and remove subscribers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List subscribers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, func(ctx context.Context, a *app.App, s *app.Stores) error {
				rs, err := s.Recipients.List(ctx)
				if err != nil {
					return err
				}
				loc := a.Config().Location
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "CHAT ID\tSUBSCRIBED (%s)\n", loc)
				for _, r := range rs {
					fmt.Fprintf(w, "%d\t%s\n", r.ChatID, r.SubscribedAt.In(loc).Format(time.DateTime))
				}
				fmt.Fprintf(w, "total\t%d\n", len(rs))
				return w.Flush()
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <chat_id>",
		Short: "Unsubscribe a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("chat id %q is not a number", args[0])
			}
			return withStores(cmd, func(ctx context.Context, _ *app.App, s *app.Stores) error {
				removed, err := s.Recipients.Remove(ctx, id)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(cmd.OutOrStdout(), "%d was not subscribed\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, rm)
	return cmd
}

func newSendNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-now",
		Short: "Broadcast one message to every subscriber immediately",
		Long: `Broadcast one message to every subscriber immediately. This does not
coordinate with a running server; use POST /api/send-now for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd, func(ctx context.Context, a *app.App, s *app.Stores) error {
				r, err := a.SendNow(ctx, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: delivered %d of %d, failed %d\n", r.RunID, r.Delivered, r.Total, r.Failed)
				return nil
			})
		},
	}
}

func printTriggers(cmd *cobra.Command, a *app.App, ts []schedule.Trigger) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "send times (%s):\n", a.Config().Location)
	for _, t := range ts {
		fmt.Fprintf(out, "  %s\n", t)
	}
	if len(ts) == 0 {
		fmt.Fprintln(out, "  none")
	}
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
