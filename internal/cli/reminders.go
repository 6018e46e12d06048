package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"civiccircle/internal/fsutil"
	"civiccircle/internal/ics"
	appLog "civiccircle/internal/log"
	"civiccircle/internal/notify"
)

func newRemindersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"reminder"},
		Short:   "Inspect and deliver local event reminders",
	}
	cmd.AddCommand(
		newRemindersListCmd(e),
		newRemindersCancelCmd(e),
		newRemindersClearCmd(e),
		newRemindersExportCmd(e),
		newRemindersImportCmd(e),
		newRemindersRunCmd(e),
	)
	return cmd
}

func newRemindersListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := e.reminderQueue().List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				e.printf("%s\n", styles.Muted.Render("No pending reminders."))
				return nil
			}
			loc := e.cfg.Location()
			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for _, en := range entries {
				when := en.FireAt.In(loc).Format("2006-01-02 15:04:05")
				if en.Due(now) {
					when += " (due)"
				}
				rows = append(rows, []string{en.ID, when, en.Kind, en.Body})
			}
			e.printf("%s\n", renderTable([]string{"ID", "Fires", "Kind", "Message"}, rows))
			return nil
		},
	}
}

func newRemindersCancelCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Remove pending reminders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := e.reminderQueue()
			for _, id := range args {
				ok, err := q.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no pending reminder %s", id)
				}
				e.success("Cancelled " + id)
			}
			return nil
		},
	}
}

func newRemindersClearCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every pending reminder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm("Remove all pending reminders?", false)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("nothing removed; pass --yes to skip the confirmation")
				}
			}
			n, err := e.reminderQueue().Clear(cmd.Context())
			if err != nil {
				return err
			}
			e.success(fmt.Sprintf("Removed %d reminder(s)", n))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newRemindersExportCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write pending reminders as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := e.reminderQueue().List(cmd.Context())
			if err != nil {
				return err
			}
			body := ics.Export(entries, ics.DefaultProdID)
			if out == "" || out == "-" {
				e.printf("%s", body)
				return nil
			}
			if err := fsutil.WriteFileAtomic(out, []byte(body)); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			e.success(fmt.Sprintf("Exported %d reminder(s) to %s", len(entries), out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newRemindersImportCmd(e *env) *cobra.Command {
	var includePast bool
	cmd := &cobra.Command{
		Use:   "import <file.ics|url>",
		Short: "Queue reminders from an iCalendar file or URL",
		Long: `import queues one reminder per VEVENT, firing at its DTSTART. Events
keep their UID as reminder id, so importing an export again replaces the
existing reminders instead of duplicating them.

An http(s) URL is downloaded with a conditional request. The last good copy
is kept under data_dir and reused when the server is unreachable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := loadCalendar(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			parsed, err := ics.Parse(body)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			q := e.reminderQueue()
			now := time.Now()
			added, skipped := 0, 0
			for _, p := range parsed {
				en := p.Entry(now)
				if !includePast && en.Due(now) {
					skipped++
					continue
				}
				if err := q.Add(cmd.Context(), en); err != nil {
					return err
				}
				added++
			}
			e.success(fmt.Sprintf("Imported %d reminder(s)", added))
			if skipped > 0 {
				e.printf("%s\n", styles.Muted.Render(fmt.Sprintf("Skipped %d past event(s); use --include-past to keep them.", skipped)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includePast, "include-past", false, "also queue events whose start has passed")
	return cmd
}

func loadCalendar(ctx context.Context, e *env, src string) ([]byte, error) {
	if !ics.IsRemote(src) {
		return readFile(src)
	}
	res, err := ics.NewFetcher(e.cfg.ICSCachePath()).Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	if res.FromCache {
		e.printf("%s\n", styles.Muted.Render("Using the cached copy of the calendar."))
	}
	return res.Body, nil
}

func newRemindersRunCmd(e *env) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deliver reminders as they come due until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			addr := firstNonEmpty(metricsAddr, e.cfg.MetricsListen)
			metricsErr := make(chan error, 1)
			if addr != "" {
				go func() {
					metricsErr <- notify.ServeMetrics(ctx, addr)
				}()
			} else {
				close(metricsErr)
			}

			loc := e.cfg.Location()
			d := notify.NewDispatcher(e.reminderQueue(),
				&notify.WriterDeliverer{W: e.out, Loc: loc},
				notify.WithPoll(e.cfg.Notifications.Poll),
				notify.WithLocation(loc),
			)
			appLog.Info("delivering reminders", "queue", e.reminderQueue().Path(), "poll", e.cfg.Notifications.Poll.String())
			fmt.Fprintln(e.errOut, styles.Muted.Render("Waiting for reminders. Press Ctrl+C to stop."))

			runErr := d.Run(ctx)
			cancel()
			if err := <-metricsErr; err != nil {
				appLog.Error("metrics server failed", err, "listen", addr)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address (overrides metrics_listen)")
	return cmd
}
