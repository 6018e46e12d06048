package cli

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"civiccircle/internal/api"
	"civiccircle/internal/app"
	"civiccircle/internal/model"
)

// inputTimeLayouts are accepted by --from and --to besides RFC 3339.
var inputTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func newEventsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event"},
		Short:   "Browse, join and manage community events",
	}
	cmd.AddCommand(
		newEventsListCmd(e),
		newEventsShowCmd(e),
		newEventsJoinCmd(e),
		newEventsCancelCmd(e),
		newEventsLikeCmd(e),
		newEventsCreateCmd(e),
		newEventsUpdateCmd(e),
		newEventsDeleteCmd(e),
		newEventsMineCmd(e),
	)
	return cmd
}

func newEventsListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) ([]model.Event, error) {
				return c.FetchEvents(ctx)
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				e.printf("%s\n", styles.Muted.Render("No events yet."))
				return nil
			}
			loc := e.cfg.Location()
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{
					ev.ID,
					ev.Title,
					model.DisplayTime(ev.EventDateFrom, loc),
					ev.Venue,
					fmt.Sprintf("%d/%d", len(ev.Participants), ev.TotalParticipantsRange.Max),
					strconv.Itoa(len(ev.Likes)),
				})
			}
			e.printf("%s\n", renderTable([]string{"ID", "Title", "Starts", "Venue", "Going", "Likes"}, rows))
			return nil
		},
	}
}

func newEventsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := fetchEvent(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			loc := e.cfg.Location()
			e.printf("%s\n", styles.Title.Render(ev.Title))
			if ev.Description != "" {
				e.printf("%s\n\n", ev.Description)
			}
			e.printf("%s\n", field("Starts", model.DisplayTime(ev.EventDateFrom, loc)))
			e.printf("%s\n", field("Ends", model.DisplayTime(ev.EventDateTo, loc)))
			e.printf("%s\n", field("Venue", ev.Venue))
			e.printf("%s\n", field("Contact", ev.ContactNumber))
			e.printf("%s\n", field("Fee", firstNonEmpty(ev.EventFee, "0")))
			e.printf("%s\n", field("Participants", fmt.Sprintf("%d (min %d, max %d)",
				len(ev.Participants), ev.TotalParticipantsRange.Min, ev.TotalParticipantsRange.Max)))
			e.printf("%s\n", field("Likes", strconv.Itoa(len(ev.Likes))))
			e.printf("%s\n", field("Organizer", fmt.Sprintf("%s <%s>", ev.Creator.FullName, ev.Creator.Email)))
			if ev.Status != "" {
				e.printf("%s\n", field("Status", ev.Status))
			}
			for _, img := range ev.Images {
				e.printf("%s\n", field("Image", img))
			}
			return nil
		},
	}
}

func newEventsJoinCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "join <id>",
		Short: "Join an event and schedule its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ev, err := fetchEvent(ctx, e, args[0])
			if err != nil {
				return err
			}
			a, err := e.application()
			if err != nil {
				return err
			}

			var res app.JoinResult
			err = a.Loop().Await(ctx, func(finish func()) {
				a.JoinEvent(ctx, ev, func(r app.JoinResult) {
					res = r
					finish()
				})
			})
			if err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}

			e.success(firstNonEmpty(res.Message, "Joined "+ev.Title))
			switch {
			case res.Reminders.Registered > 0:
				e.printf("%d reminder(s) queued. Run \"civic reminders run\" to receive them.\n", res.Reminders.Registered)
			case res.Reminders.Dropped > 0:
				e.printf("%s\n", styles.Warning.Render("Reminders were not scheduled: notifications are disabled."))
			}
			if res.Reminders.Truncated {
				e.printf("%s\n", styles.Warning.Render("The event is long; only the first daily reminders were queued."))
			}
			return nil
		},
	}
}

func newEventsCancelCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel your participation in an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (string, error) {
				return c.CancelParticipation(ctx, args[0])
			})
			if err != nil {
				return err
			}
			e.success(firstNonEmpty(msg, "Participation cancelled"))
			return nil
		},
	}
}

func newEventsLikeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like or unlike an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			likes, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (int, error) {
				return c.LikeEvent(ctx, args[0])
			})
			if err != nil {
				return err
			}
			e.printf("Likes: %d\n", likes)
			return nil
		},
	}
}

// eventFlags are the editable fields shared by create and update.
type eventFlags struct {
	title, description, venue, contact, fee string
	from, to                                string
	min, max                                int
	image                                   string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.title, "title", "", "event title")
	fs.StringVar(&f.description, "description", "", "event description")
	fs.StringVar(&f.venue, "venue", "", "where the event takes place")
	fs.StringVar(&f.contact, "contact", "", "contact phone number")
	fs.StringVar(&f.fee, "fee", "", "participation fee")
	fs.StringVar(&f.from, "from", "", `start, RFC 3339 or "2006-01-02 15:04" in the configured timezone`)
	fs.StringVar(&f.to, "to", "", "end, same formats as --from")
	fs.IntVar(&f.min, "min", 0, "minimum participants")
	fs.IntVar(&f.max, "max", 0, "maximum participants")
	fs.StringVar(&f.image, "image", "", "image file to upload")
}

// apply copies the flags the user set onto d.
func (f *eventFlags) apply(cmd *cobra.Command, d *model.EventDetails, loc *time.Location) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		d.Title = f.title
	}
	if changed("description") {
		d.Description = f.description
	}
	if changed("venue") {
		d.Venue = f.venue
	}
	if changed("contact") {
		if err := checkPhone(f.contact); err != nil {
			return err
		}
		d.ContactNumber = f.contact
	}
	if changed("fee") {
		d.EventFee = f.fee
	}
	if changed("from") {
		t, err := parseInputTime(f.from, loc)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		d.EventDateFrom = t
	}
	if changed("to") {
		t, err := parseInputTime(f.to, loc)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		d.EventDateTo = t
	}
	if changed("min") {
		d.TotalParticipantsRangeMin = f.min
	}
	if changed("max") {
		d.TotalParticipantsRangeMax = f.max
	}
	return nil
}

func (f *eventFlags) upload() (*api.Upload, error) {
	if f.image == "" {
		return nil, nil
	}
	return loadUpload(f.image)
}

func newEventsCreateCmd(e *env) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var d model.EventDetails
			if err := f.apply(cmd, &d, e.cfg.Location()); err != nil {
				return err
			}
			if d.Title == "" || d.EventDateFrom.IsZero() || d.EventDateTo.IsZero() {
				return fmt.Errorf("--title, --from and --to are required")
			}
			if d.EventDateTo.Before(d.EventDateFrom) {
				return fmt.Errorf("--to is before --from")
			}
			img, err := f.upload()
			if err != nil {
				return err
			}
			ev, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.Event, error) {
				return c.CreateEvent(ctx, d, img)
			})
			if err != nil {
				return err
			}
			e.success("Created event " + ev.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEventsUpdateCmd(e *env) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an event you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := fetchEvent(cmd.Context(), e, args[0])
			if err != nil {
				return err
			}
			d, err := detailsOf(ev)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &d, e.cfg.Location()); err != nil {
				return err
			}
			img, err := f.upload()
			if err != nil {
				return err
			}
			updated, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.Event, error) {
				return c.UpdateEvent(ctx, ev.ID, d, img)
			})
			if err != nil {
				return err
			}
			e.success("Updated " + updated.Title)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newEventsDeleteCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event you created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := confirm("Delete event "+args[0]+"?", false)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("not deleted; pass --yes to skip the confirmation")
				}
			}
			_, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (struct{}, error) {
				return struct{}{}, c.DeleteEvent(ctx, args[0])
			})
			if err != nil {
				return err
			}
			e.success("Deleted " + args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newEventsMineCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the events you created",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) ([]model.UserEvent, error) {
				return c.FetchUserEvents(ctx)
			})
			if err != nil {
				return err
			}
			if len(events) == 0 {
				e.printf("%s\n", styles.Muted.Render("You have not created any events."))
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{
					ev.ID,
					ev.Title,
					ev.RelativeTime,
					strconv.Itoa(ev.ParticipantCount),
					strconv.Itoa(ev.LikesCount),
				})
			}
			e.printf("%s\n", renderTable([]string{"ID", "Title", "Created", "Going", "Likes"}, rows))
			return nil
		},
	}
}

func fetchEvent(ctx context.Context, e *env, id string) (model.Event, error) {
	return await(ctx, e, func(ctx context.Context, c *api.Client) (model.Event, error) {
		return c.FetchEvent(ctx, id)
	})
}

// detailsOf extracts the editable fields of ev.
func detailsOf(ev model.Event) (model.EventDetails, error) {
	from, to, err := ev.Window()
	if err != nil {
		return model.EventDetails{}, fmt.Errorf("event %s has unreadable dates: %w", ev.ID, err)
	}
	return model.EventDetails{
		Title:                     ev.Title,
		Description:               ev.Description,
		ContactNumber:             ev.ContactNumber,
		Venue:                     ev.Venue,
		EventDateFrom:             from,
		EventDateTo:               to,
		TotalParticipantsRangeMin: ev.TotalParticipantsRange.Min,
		TotalParticipantsRangeMax: ev.TotalParticipantsRange.Max,
		EventFee:                  ev.EventFee,
	}, nil
}

func parseInputTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range inputTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}

func loadUpload(path string) (*api.Upload, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &api.Upload{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}
