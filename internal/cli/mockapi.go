package cli

import (
	"github.com/spf13/cobra"

	"civiccircle/internal/mockapi"
)

func newMockAPICmd(e *env) *cobra.Command {
	var (
		listen string
		seed   bool
	)
	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Serve an in-memory Civic Circle API for local development",
		Long: `mock-api serves the REST endpoints the client uses from memory. Data is
lost when it stops. Password reset codes are written to the log instead of
being mailed.

Point the client at it with --api http://<listen>/api/ or api_base_url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := mockapi.New(mockapi.Options{
				SigningKey: e.cfg.MockAPI.SigningKey,
				TokenTTL:   e.cfg.MockAPI.TokenTTL,
			})
			if err != nil {
				return err
			}
			if seed {
				if _, err := srv.Seed(); err != nil {
					return err
				}
				e.printf("Demo account: %s / %s\n", mockapi.DemoEmail, mockapi.DemoPassword)
			}
			return mockapi.ListenAndServe(cmd.Context(), firstNonEmpty(listen, e.cfg.MockAPI.Listen), srv)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides mock_api.listen)")
	cmd.Flags().BoolVar(&seed, "seed", false, "create a demo account with sample events")
	return cmd
}
