package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/repairdesk/internal/model"
	"github.com/iliyamo/repairdesk/internal/repository"
	"github.com/iliyamo/repairdesk/internal/utils"
)

func newRequestsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"req"},
		Short:   "Create, inspect and update repair requests",
	}
	cmd.AddCommand(
		newAddCommand(a),
		newListCommand(a),
		newShowCommand(a),
		newSearchCommand(a),
		newStatusCommand(a),
		newExtendCommand(a),
		newCommentCommand(a),
		newDeleteCommand(a),
	)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid request id %q", s)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRequests(w io.Writer, reqs []model.Request) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tDEVICE\tMODEL\tCLIENT\tPHONE\tSTATUS\tMASTER\tDEADLINE")
	for _, r := range reqs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedDate, r.DeviceType, r.DeviceModel, r.ClientName, r.ClientPhone,
			r.Status, deref(r.MasterName), deref(r.Deadline))
	}
	return tw.Flush()
}

func newAddCommand(a *app) *cobra.Command {
	var in model.NewRequest
	var deadline string
	var suggest bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new repair request",
		Example: `  repairdesk requests add --device Холодильник --model "Atlant XM-4021" \
    --problem "Не морозит" --client "Иванов И.И." --phone 89001234567 --suggest-deadline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case deadline != "":
				in.Deadline = &deadline
			case suggest:
				d := utils.SuggestDeadline(time.Now(), in.DeviceType)
				in.Deadline = &d
			}
			id, err := a.service.CreateRequest(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created request %d\n", id)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.DeviceType, "device", "", "device type, e.g. "+strings.Join(model.DeviceTypes[:3], ", "))
	f.StringVar(&in.DeviceModel, "model", "", "device model")
	f.StringVar(&in.ProblemDescription, "problem", "", "problem description")
	f.StringVar(&in.ClientName, "client", "", "client full name")
	f.StringVar(&in.ClientPhone, "phone", "", "client phone, +7/7/8 followed by 10 digits")
	f.StringVar(&deadline, "deadline", "", "due date YYYY-MM-DD")
	f.BoolVar(&suggest, "suggest-deadline", false, "derive the due date from the device type")
	cmd.MarkFlagsMutuallyExclusive("deadline", "suggest-deadline")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := a.requests.GetAllRequests(cmd.Context(), status)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), reqs)
			}
			return printRequests(cmd.OutOrStdout(), reqs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only requests with this exact status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one request with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req, err := a.requests.GetRequest(cmd.Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("request %d not found", id)
			}
			if err != nil {
				return err
			}
			comments, err := a.comments.GetComments(cmd.Context(), id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, struct {
					model.Request
					Comments []model.Comment `json:"comments"`
				}{req, comments})
			}
			if err := printRequests(w, []model.Request{req}); err != nil {
				return err
			}
			fmt.Fprintf(w, "problem: %s\ncompleted: %s\nupdated: %s\n",
				req.ProblemDescription, deref(req.CompletionDate), deref(req.UpdatedDate))
			for _, c := range comments {
				fmt.Fprintf(w, "  [%s] %s: %s", c.AddedDate, c.Author, c.CommentText)
				if c.PartsOrdered != nil && *c.PartsOrdered != "" {
					fmt.Fprintf(w, " (parts: %s)", *c.PartsOrdered)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find requests by id, client name, phone or model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := a.requests.SearchRequests(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRequests(cmd.OutOrStdout(), reqs)
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	var master string
	cmd := &cobra.Command{
		Use:       "status <id> <status>",
		Short:     "Change the status of a request",
		Long:      "Change the status of a request. Known statuses: " + strings.Join(model.Statuses, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: model.Statuses,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ok, err := a.service.ChangeStatus(cmd.Context(), id, args[1], master)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("request %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %d is now %s\n", id, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&master, "master", "", "assign this master")
	return cmd
}

func newExtendCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extend <id> <YYYY-MM-DD>",
		Short: "Set a new due date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ok, err := a.service.ExtendDeadline(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("deadline of request %d not changed", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %d due %s\n", id, args[1])
			return nil
		},
	}
}

func newCommentCommand(a *app) *cobra.Command {
	var parts, author string
	cmd := &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Add a comment, optionally recording ordered parts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ok, err := a.service.AddComment(cmd.Context(), id, args[1], parts, author)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("comment not added to request %d", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment added to request %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&parts, "parts", "", "parts ordered for the repair")
	cmd.Flags().StringVar(&author, "author", "operator", "comment author")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a request and its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ok, err := a.service.DeleteRequest(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("request %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request %d deleted\n", id)
			return nil
		},
	}
}
