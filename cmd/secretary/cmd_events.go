package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/secretary/internal/calendar"
	"github.com/user/secretary/internal/types"
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsListCmd.Flags().IntVar(&eventsListDays, "days", 7, "how many days ahead to list")
	eventsBusyCmd.Flags().IntVar(&eventsBusyDays, "days", 1, "how many days ahead to check")
	eventsCmd.AddCommand(eventsListCmd, eventsSearchCmd, eventsRemindCmd, eventsBusyCmd)
}

var (
	eventsListDays int
	eventsBusyDays int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the calendar directly",
}

func openStore() (*calendar.Store, string, error) {
	cfg := loadConfig()
	store, err := calendar.NewStore(cfg.Calendar.DBPath)
	if err != nil {
		return nil, "", fmt.Errorf("open calendar store: %w", err)
	}
	return store, cfg.Calendar.PrimaryID, nil
}

func printEvents(events []*types.Event) error {
	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTART\tSUMMARY\tLOCATION")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.ID,
			e.Start.Local().Format("2006-01-02 15:04"),
			e.Summary,
			e.Location,
		)
	}
	return w.Flush()
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, calendarID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now()
		events, err := store.ListEvents(context.Background(), calendarID, now, now.AddDate(0, 0, eventsListDays))
		if err != nil {
			return err
		}
		return printEvents(events)
	},
}

var eventsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search events by text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, calendarID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.SearchEvents(context.Background(), calendarID, args[0])
		if err != nil {
			return err
		}
		return printEvents(events)
	},
}

var eventsRemindCmd = &cobra.Command{
	Use:   "remind <event-id> <offset-minutes>...",
	Short: "Override the reminder offsets for one event",
	Long: `Replace the default reminder schedule for a single event. Each offset
is minutes before the event start; an offset of 0 fires at start time.
For example, "events remind abc123 180 30" reminds 3 hours and 30
minutes ahead instead of the configured defaults.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, calendarID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var rules []types.ReminderRule
		for _, arg := range args[1:] {
			offset, err := strconv.Atoi(arg)
			if err != nil || offset < 0 || offset > types.MaxReminderOffsetMinutes {
				return fmt.Errorf("offset must be 0 to %d minutes: %q", types.MaxReminderOffsetMinutes, arg)
			}
			rules = append(rules, types.ReminderRule{OffsetMinutes: offset, Enabled: true})
		}

		if err := store.SetOverrides(context.Background(), calendarID, args[0], rules); err != nil {
			return err
		}
		fmt.Printf("Reminder overrides set for %s.\n", args[0])
		return nil
	},
}

var eventsBusyCmd = &cobra.Command{
	Use:   "busy",
	Short: "Show busy intervals on the calendar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, calendarID, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		now := time.Now()
		fb, err := store.FreeBusy(context.Background(), []string{calendarID}, now, now.AddDate(0, 0, eventsBusyDays))
		if err != nil {
			return err
		}

		periods := fb.Busy[calendarID]
		if len(periods) == 0 {
			fmt.Println("Nothing on the calendar. You're free.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "START\tEND")
		for _, p := range periods {
			fmt.Fprintf(w, "%s\t%s\n",
				p.Start.Local().Format("2006-01-02 15:04"),
				p.End.Local().Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}
