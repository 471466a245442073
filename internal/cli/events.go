package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/gopop/pkg/model"
)

func newEventsCmd() *cobra.Command {
	var (
		requestID string
		limit     int
		offset    int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page through the event journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if requestID != "" {
				q.Set("request_id", requestID)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get(cmd.Context(), "/api/v1/events?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}
			var events []model.Event
			if err := decodeData(resp, &events); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No events.")
				return nil
			}

			t := &table{header: []string{"SEQ", "KIND", "REQUEST", "DETAIL", "AT"}}
			for _, ev := range events {
				t.add(strconv.FormatInt(ev.Seq, 10), string(ev.Kind), requestLabel(ev), eventDetail(ev), ev.At.Local().Format(time.DateTime))
			}
			t.write(out)

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(events), resp.Pagination.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Only events of this request ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of events to skip")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream scheduler events as they happen",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			seen := 0
			return client.Stream(cmd.Context(), "/api/v1/sse/events", func(name string, data []byte) error {
				if name == "state" {
					var st model.StateView
					if err := json.Unmarshal(data, &st); err != nil {
						return err
					}
					printWatchState(out, st)
					return nil
				}

				var ev model.Event
				if err := json.Unmarshal(data, &ev); err != nil {
					return err
				}
				printWatchEvent(out, ev)
				seen++
				if count > 0 && seen >= count {
					return errStopStream
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many events (0 = until interrupted)")
	return cmd
}

func printWatchState(w io.Writer, st model.StateView) {
	line := fmt.Sprintf("state %s, %d pending", st.State, st.Pending)
	if st.Active != nil {
		line += fmt.Sprintf(", showing %s (%d)", st.Active.Description, st.Active.Priority)
	}
	fmt.Fprintln(w, dimStyle.Render(line))
}

func printWatchEvent(w io.Writer, ev model.Event) {
	at := dimStyle.Render(ev.At.Local().Format(time.TimeOnly))
	fmt.Fprintf(w, "%s  #%-4d %-12s %s %s\n", at, ev.Seq, ev.Kind, requestLabel(ev), eventDetail(ev))
}

func requestLabel(ev model.Event) string {
	if ev.Kind == model.EventTransition {
		return "-"
	}
	return fmt.Sprintf("%s(%d)", ev.Description, ev.Priority)
}

func eventDetail(ev model.Event) string {
	switch {
	case ev.Kind == model.EventTransition:
		return fmt.Sprintf("%s → %s", ev.From, ev.To)
	case ev.Detail["delay_ms"] != nil:
		return fmt.Sprintf("next in %vms", ev.Detail["delay_ms"])
	case ev.RequestID != "":
		return ev.RequestID
	}
	return ""
}
