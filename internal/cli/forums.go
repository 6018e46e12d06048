package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"civiccircle/internal/api"
	"civiccircle/internal/model"
)

func newForumsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "forums",
		Aliases: []string{"forum"},
		Short:   "Read and write forum posts",
	}
	cmd.AddCommand(
		newForumsListCmd(e),
		newForumsShowCmd(e),
		newForumsPostCmd(e),
		newForumsLikeCmd(e),
		newForumsCommentCmd(e),
	)
	return cmd
}

func newForumsListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List forum posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			forums, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) ([]model.Forum, error) {
				return c.FetchForums(ctx)
			})
			if err != nil {
				return err
			}
			if len(forums) == 0 {
				e.printf("%s\n", styles.Muted.Render("No posts yet."))
				return nil
			}
			loc := e.cfg.Location()
			rows := make([][]string, 0, len(forums))
			for _, f := range forums {
				rows = append(rows, []string{
					f.ID,
					f.Title,
					f.Creator.Email,
					model.DisplayTime(f.CreatedAt, loc),
					strconv.Itoa(len(f.Comments)),
					strconv.Itoa(len(f.Likes)),
				})
			}
			e.printf("%s\n", renderTable([]string{"ID", "Title", "By", "Posted", "Comments", "Likes"}, rows))
			return nil
		},
	}
}

func newForumsShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a post and its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.Forum, error) {
				return c.FetchForum(ctx, args[0])
			})
			if err != nil {
				return err
			}
			loc := e.cfg.Location()
			e.printf("%s\n", styles.Title.Render(f.Title))
			e.printf("%s\n\n", styles.Muted.Render(f.Creator.Email+", "+model.DisplayTime(f.CreatedAt, loc)))
			e.printf("%s\n", f.Content)
			for _, img := range f.Images {
				e.printf("%s\n", field("Image", img))
			}
			e.printf("\n%s\n", field("Likes", strconv.Itoa(len(f.Likes))))
			if len(f.Comments) == 0 {
				return nil
			}
			e.printf("\n%s\n", styles.Title.Render("Comments"))
			for _, cm := range f.Comments {
				e.printf("%s %s\n  %s\n",
					styles.Header.UnsetPadding().Render(cm.Creator.Email),
					styles.Muted.Render(model.DisplayTime(cm.Date, loc)),
					strings.ReplaceAll(cm.Body, "\n", "\n  "))
			}
			return nil
		},
	}
}

func newForumsPostCmd(e *env) *cobra.Command {
	var title, content, image string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Start a new forum post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensure(&title, "title", "Title", false, required("title")); err != nil {
				return err
			}
			if err := ensure(&content, "content", "Content", false, required("content")); err != nil {
				return err
			}
			var img *api.Upload
			if image != "" {
				var err error
				if img, err = loadUpload(image); err != nil {
					return err
				}
			}
			f, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.Forum, error) {
				return c.CreateForumPost(ctx, title, content, img)
			})
			if err != nil {
				return err
			}
			e.success("Posted " + f.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "post title")
	cmd.Flags().StringVar(&content, "content", "", "post text")
	cmd.Flags().StringVar(&image, "image", "", "image file to attach")
	return cmd
}

func newForumsLikeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like or unlike a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			likes, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (int, error) {
				return c.LikeForumPost(ctx, args[0])
			})
			if err != nil {
				return err
			}
			e.printf("Likes: %d\n", likes)
			return nil
		},
	}
}

func newForumsCommentCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			f, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.Forum, error) {
				return c.AddComment(ctx, args[0], body)
			})
			if err != nil {
				return err
			}
			e.success("Comment added (" + strconv.Itoa(len(f.Comments)) + " total)")
			return nil
		},
	}
}

func newNotificationsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "List server notifications about events you joined",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			notes, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) ([]model.Notification, error) {
				return c.FetchNotifications(ctx)
			})
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				e.printf("%s\n", styles.Muted.Render("No notifications."))
				return nil
			}
			loc := e.cfg.Location()
			rows := make([][]string, 0, len(notes))
			for _, n := range notes {
				rows = append(rows, []string{
					n.EventName,
					model.DisplayTime(n.EventDate, loc),
					model.DisplayTime(n.CreatedAt, loc),
				})
			}
			e.printf("%s\n", renderTable([]string{"Event", "Event date", "Received"}, rows))
			return nil
		},
	}
}
