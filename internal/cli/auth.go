package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"civiccircle/internal/api"
	"civiccircle/internal/model"
	"civiccircle/internal/session"
	"civiccircle/internal/validate"
)

func newLoginCmd(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensure(&email, "email", "Email", false, checkEmail); err != nil {
				return err
			}
			if err := ensure(&password, "password", "Password", true, required("password")); err != nil {
				return err
			}
			_, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (struct{}, error) {
				return struct{}{}, c.Login(ctx, email, password)
			})
			if err != nil {
				return err
			}
			e.success("Logged in as " + email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.apiClient()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			e.success("Logged out")
			return nil
		},
	}
}

func newRegisterCmd(e *env) *cobra.Command {
	var reg model.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensure(&reg.FullName, "name", "Full name", false, required("name")); err != nil {
				return err
			}
			if err := ensure(&reg.Email, "email", "Email", false, checkEmail); err != nil {
				return err
			}
			if err := ensure(&reg.Phone, "phone", "Phone", false, checkPhone); err != nil {
				return err
			}
			if err := ensure(&reg.Password, "password", "Password", true, validate.Password); err != nil {
				return err
			}
			msg, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (string, error) {
				return c.Register(ctx, reg)
			})
			if err != nil {
				return err
			}
			e.success(firstNonEmpty(msg, "Registered"))
			e.printf("Log in with: civic login --email %s\n", reg.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number, 10 to 15 digits")
	cmd.Flags().StringVar(&reg.Address, "address", "", "street address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password, at least 6 characters (prompted when omitted)")
	return cmd
}

func newResetPasswordCmd(e *env) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Ask for a one-time password to reset the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensure(&email, "email", "Email", false, checkEmail); err != nil {
				return err
			}
			msg, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (string, error) {
				return c.RequestPasswordReset(ctx, email)
			})
			if err != nil {
				return err
			}
			e.success(firstNonEmpty(msg, "Reset requested"))
			e.printf("Then run: civic verify-otp --email %s --otp <code>\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newVerifyOTPCmd(e *env) *cobra.Command {
	var email, otp, newPassword string
	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "Check a one-time password and optionally set a new password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ensure(&email, "email", "Email", false, checkEmail); err != nil {
				return err
			}
			if err := ensure(&otp, "otp", "One-time password", false, required("otp")); err != nil {
				return err
			}
			if newPassword != "" {
				if err := validate.Password(newPassword); err != nil {
					return err
				}
			}
			msg, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (string, error) {
				return c.VerifyOTP(ctx, email, otp, newPassword)
			})
			if err != nil {
				return err
			}
			e.success(firstNonEmpty(msg, "OTP verified"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&otp, "otp", "", "one-time password from the reset mail")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new account password")
	return cmd
}

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a valid session is stored",
		Long: `status runs the launch check: a missing token means logged out, an
expired token is removed and reported, and a valid token shows the profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			if a.Bootstrap(cmd.Context()) != session.RouteMain {
				e.printf("%s\n", styles.Muted.Render("Not logged in. Run: civic login"))
				return nil
			}

			tok, _, err := e.sessionStore().Get(cmd.Context(), session.AuthTokenKey)
			if err != nil {
				return err
			}
			exp, _ := session.ExpiresAt(tok)

			u, err := await(cmd.Context(), e, func(ctx context.Context, c *api.Client) (model.User, error) {
				return c.FetchProfile(ctx)
			})
			if err != nil {
				return err
			}
			e.printf("%s\n", styles.Title.Render("Logged in"))
			e.printf("%s\n", field("Name", u.FullName))
			e.printf("%s\n", field("Email", u.Email))
			e.printf("%s\n", field("Session expires", exp.In(e.cfg.Location()).Format(time.RFC1123)))
			return nil
		},
	}
}
