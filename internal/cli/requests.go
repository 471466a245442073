package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/gopop/pkg/model"
)

func newAddCmd() *cobra.Command {
	var (
		priority int
		showIf   string
		labels   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Admit a request",
		Long: `Admit a request. The request with the greatest priority is shown first;
priorities must be unique among pending and active requests.

--show-if takes a JavaScript expression evaluated just before the request is
shown (request, labels, pending and now are in scope). A false result cancels it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("priority") {
				return fmt.Errorf("--priority is required")
			}
			body := map[string]any{
				"description": args[0],
				"priority":    priority,
			}
			if showIf != "" {
				body["show_if"] = showIf
			}
			if len(labels) > 0 {
				body["labels"] = labels
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/requests/", body)
			if err != nil {
				return fmt.Errorf("add request: %w", err)
			}
			var v model.RequestView
			if err := decodeData(resp, &v); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Admitted %s (priority %d): %s\n", v.ID, v.Priority, styleStatus(v.Status))
			return nil
		},
	}
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Request priority (greater is shown first)")
	cmd.Flags().StringVar(&showIf, "show-if", "", "JavaScript predicate; false cancels the request before it is shown")
	cmd.Flags().StringToStringVarP(&labels, "label", "l", nil, "Labels as key=value (repeatable)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the active request and the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/requests/")
			if err != nil {
				return fmt.Errorf("list requests: %w", err)
			}
			var views []model.RequestView
			if err := decodeData(resp, &views); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, "No requests.")
				return nil
			}

			t := &table{header: []string{"ID", "PRIORITY", "STATUS", "DESCRIPTION", "ADMITTED"}}
			for _, v := range views {
				t.add(v.ID, strconv.Itoa(v.Priority), styleStatus(v.Status), v.Description, age(v.CreatedAt))
			}
			t.write(out)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [request_id]",
		Short: "Show the scheduler state, or one request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				resp, err := client.Get(cmd.Context(), "/api/v1/requests/"+args[0])
				if err != nil {
					return fmt.Errorf("get request: %w", err)
				}
				var v model.RequestView
				if err := decodeData(resp, &v); err != nil {
					return err
				}
				printRequest(cmd, &v)
				return nil
			}

			resp, err := client.Get(cmd.Context(), "/api/v1/state")
			if err != nil {
				return fmt.Errorf("get state: %w", err)
			}
			var st model.StateView
			if err := decodeData(resp, &st); err != nil {
				return err
			}

			fmt.Fprintf(out, "State:    %s\n", st.State)
			fmt.Fprintf(out, "Pending:  %d\n", st.Pending)
			fmt.Fprintf(out, "Interval: %s\n", st.Interval)
			if st.Active != nil {
				fmt.Fprintln(out, "Active:")
				printRequest(cmd, st.Active)
			}
			return nil
		},
	}
}

func printRequest(cmd *cobra.Command, v *model.RequestView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  ID:          %s\n", v.ID)
	fmt.Fprintf(out, "  Description: %s\n", v.Description)
	fmt.Fprintf(out, "  Priority:    %d\n", v.Priority)
	fmt.Fprintf(out, "  Status:      %s\n", styleStatus(v.Status))
	if v.ShowIf != "" {
		fmt.Fprintf(out, "  Show if:     %s\n", v.ShowIf)
	}
	keys := make([]string, 0, len(v.Labels))
	for k := range v.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  Label:       %s=%s\n", k, v.Labels[k])
	}
	if v.CancelFlag {
		fmt.Fprintln(out, "  Cancel flag: set")
	}
	fmt.Fprintf(out, "  Admitted:    %s\n", age(v.CreatedAt))
}

func newResignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resign <request_id>",
		Short: "Dismiss the active request so the next one is shown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(cmd.Context(), "/api/v1/requests/"+args[0]+"/resign", nil)
			if err != nil {
				return fmt.Errorf("resign request: %w", err)
			}
			var v model.RequestView
			if err := decodeData(resp, &v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s: %s\n", v.ID, styleStatus(v.Status))
			return nil
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <request_id>",
		Short: "Cancel a pending request before it is shown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(cmd.Context(), "/api/v1/requests/"+args[0]+"/cancel", nil)
			if err != nil {
				return fmt.Errorf("cancel request: %w", err)
			}
			var v model.RequestView
			if err := decodeData(resp, &v); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Request %s: cancel flag set (%s)\n", v.ID, styleStatus(v.Status))
			if v.Status == model.RequestStatusActive {
				fmt.Fprintln(out, dimStyle.Render("  already shown; the flag has no effect, use resign"))
			}
			return nil
		},
	}
}
