package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"civiccircle/internal/api"
	"civiccircle/internal/app"
	"civiccircle/internal/config"
	appLog "civiccircle/internal/log"
	"civiccircle/internal/notify"
	"civiccircle/internal/reminder"
	"civiccircle/internal/session"
)

// env holds what commands share: the loaded config and the lazily built
// collaborators derived from it.
type env struct {
	configPath string
	logLevel   string
	apiURL     string

	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	store  session.Store
	client *api.Client
	queue  *notify.Queue
	center *notify.Center
	app    *app.App
}

func (e *env) load(cmd *cobra.Command) error {
	e.out = cmd.OutOrStdout()
	e.errOut = cmd.ErrOrStderr()

	path := e.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
	}
	if e.apiURL != "" {
		cfg.APIBaseURL = e.apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"config_path", path,
		"api_base_url", cfg.APIBaseURL,
		"data_dir", cfg.DataDir,
		"timezone", cfg.Timezone,
		"notifications_enabled", cfg.Notifications.Enabled,
	)
	e.cfg = cfg
	return nil
}

func (e *env) sessionStore() session.Store {
	if e.store == nil {
		e.store = session.NewFileStore(e.cfg.CredentialsPath())
	}
	return e.store
}

func (e *env) apiClient() (*api.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	c, err := api.New(e.cfg.APIBaseURL, e.sessionStore(), api.Options{})
	if err != nil {
		return nil, err
	}
	e.client = c
	return c, nil
}

func (e *env) reminderQueue() *notify.Queue {
	if e.queue == nil {
		e.queue = notify.NewQueue(e.cfg.RemindersPath())
	}
	return e.queue
}

func (e *env) notificationCenter() *notify.Center {
	if e.center == nil {
		e.center = notify.NewCenter(e.reminderQueue(), e.cfg.Notifications.Enabled)
	}
	return e.center
}

func (e *env) application() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	c, err := e.apiClient()
	if err != nil {
		return nil, err
	}
	sched := reminder.New(e.notificationCenter(),
		reminder.WithInitialDelay(e.cfg.Notifications.InitialDelay),
		reminder.WithMaxDaily(e.cfg.Notifications.MaxDaily),
	)
	e.app = app.New(app.Deps{
		Events:    c,
		Scheduler: sched,
		Bootstrap: session.Bootstrap{
			Store:       e.sessionStore(),
			Checker:     session.NewChecker(nil),
			Notifier:    session.NotifierFunc(e.notice),
			NoticeDelay: e.cfg.Session.NoticeDelay,
			SplashDelay: e.cfg.Session.SplashDelay,
		},
		Location: e.cfg.Location(),
	})
	return e.app, nil
}

// notice prints msg. It cannot be dismissed, so the bootstrap waits out its
// notice delay.
func (e *env) notice(_ context.Context, msg string) <-chan struct{} {
	fmt.Fprintln(e.errOut, styles.Warning.Render(msg))
	return nil
}

// await runs fn in the background through the App and waits on its loop for
// the result.
func await[T any](ctx context.Context, e *env, fn func(context.Context, *api.Client) (T, error)) (T, error) {
	var zero T
	a, err := e.application()
	if err != nil {
		return zero, err
	}
	c, err := e.apiClient()
	if err != nil {
		return zero, err
	}

	var (
		v       T
		callErr error
	)
	err = a.Loop().Await(ctx, func(finish func()) {
		app.Call(ctx, a, func(ctx context.Context) (T, error) {
			return fn(ctx, c)
		}, func(r T, err error) {
			v, callErr = r, err
			finish()
		})
	})
	if err != nil {
		return zero, err
	}
	return v, callErr
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

func (e *env) success(msg string) {
	fmt.Fprintln(e.out, styles.Success.Render(msg))
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// readFile reads a local file, with "-" meaning stdin.
func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
