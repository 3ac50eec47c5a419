package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/builder"
	"github.com/nzsystems/rezume/internal/i18n"
	"github.com/nzsystems/rezume/internal/logger"
	"github.com/nzsystems/rezume/internal/session"
	"github.com/nzsystems/rezume/internal/state"
	"github.com/nzsystems/rezume/internal/toast"
	"github.com/nzsystems/rezume/internal/utils"
)

// errReported marks a failure already shown to the user, as a toast or a
// validation message.
var errReported = errors.New("reported")

// prompter is the interactive part of the terminal.
type prompter interface {
	Input(label string, mask bool) (string, error)
	Select(label string, items []string) (int, error)
	Confirm(label string) (bool, error)
}

type terminal struct{}

func (terminal) Input(label string, mask bool) (string, error) {
	p := promptui.Prompt{Label: label}
	if mask {
		p.Mask = '*'
	}
	return p.Run()
}

func (terminal) Select(label string, items []string) (int, error) {
	s := promptui.Select{Label: label, Items: items}
	idx, _, err := s.Run()
	return idx, err
}

func (terminal) Confirm(label string) (bool, error) {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	return err == nil, err
}

// application is everything a command needs for one run.
type application struct {
	ctx     context.Context
	cfg     *Config
	logger  *zap.Logger
	state   *state.File
	client  *session.Client
	builder *builder.Builder
	toasts  *toast.Service
	texts   *i18n.Store
	locale  i18n.Locale
	prompt  prompter
	out     io.Writer
	errOut  io.Writer
}

func newApplication(ctx context.Context, cfg *Config, log *zap.Logger, prompt prompter, out, errOut io.Writer) (*application, error) {
	path := cfg.StateFile
	if path == "" {
		var err error
		if path, err = state.DefaultPath(); err != nil {
			return nil, fmt.Errorf("locate state file: %w", err)
		}
	}

	st, err := state.Open(path)
	if err != nil {
		return nil, err
	}

	a := &application{
		ctx:    ctx,
		cfg:    cfg,
		logger: log,
		state:  st,
		toasts: toast.New(),
		texts:  i18n.Default(),
		prompt: prompt,
		out:    out,
		errOut: errOut,
	}

	a.locale = i18n.Resolve(cfg.Locale)
	if saved := st.Locale(); saved != "" {
		a.locale = i18n.Resolve(saved)
	}

	a.client, err = session.New(cfg.APIURL, log,
		session.WithStore(st),
		session.WithTimeout(cfg.Timeout),
		session.WithAlertHandler(a.onAlert),
		session.WithTeardown(func() {
			if err := st.SetGeneration(nil); err != nil {
				log.Warn("failed to forget last generation", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	a.builder = builder.New(a.client, log)

	a.toasts.Subscribe(a.render)

	return a, nil
}

func bootstrap(cmd *cobra.Command) (*application, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return newApplication(cmd.Context(), config, log, terminal{}, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

type action func(a *application, cmd *cobra.Command, args []string) error

func withApp(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.logger.Sync() //nolint:errcheck

		return fn(a, cmd, args)
	}
}

func (a *application) t(key string) string {
	return a.texts.T(a.locale, key)
}

var badges = map[toast.Severity]func(format string, a ...any) string{
	toast.Info:    color.CyanString,
	toast.Success: color.GreenString,
	toast.Warning: color.YellowString,
	toast.Error:   color.RedString,
}

// render prints toasts as they appear. A command ends long before any toast
// expires, so removals are not shown.
func (a *application) render(ev toast.Event) {
	if ev.Kind != toast.Added {
		return
	}

	badge, ok := badges[ev.Toast.Severity]
	if !ok {
		badge = fmt.Sprintf
	}
	fmt.Fprintf(a.errOut, "%s %s\n", badge("[%s]", ev.Toast.Severity), ev.Toast.Message)
}

func (a *application) notify(severity toast.Severity, key string, extra ...string) {
	a.toasts.Add(message(a.t(key), extra...), severity)
}

func message(prefix string, extra ...string) string {
	parts := append([]string{prefix}, extra...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// fail reports err at the call site. Session expiry and server outages are
// left to the alert dialog.
func (a *application) fail(err error, key string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apierr.ErrValidation):
		fmt.Fprintln(a.errOut, err)
	case apierr.IsGlobal(err):
	case errors.Is(err, apierr.ErrNetwork):
		a.notify(toast.Error, "toasts.network_error")
	default:
		a.notify(toast.Error, key, apierr.Detail(err))
	}

	a.logger.Debug("action failed", zap.Error(err))
	return fmt.Errorf("%w: %w", errReported, err)
}

// requireSession restores the session from the stored cookies.
func (a *application) requireSession(withData bool) error {
	ok, err := a.client.Refresh(a.ctx, withData)
	if err != nil {
		return a.fail(err, "cli.refresh_error")
	}
	if !ok {
		fmt.Fprintln(a.errOut, a.t("cli.not_logged_in"))
		return fmt.Errorf("%w: %w", errReported, apierr.ErrUnauthenticated)
	}

	a.useLanguage(a.client.Cache().User().Language)
	return nil
}

func (a *application) useLanguage(language string) {
	if language == "" {
		return
	}
	a.locale = i18n.Resolve(language)
	if err := a.state.SetLocale(string(a.locale)); err != nil {
		a.logger.Warn("failed to store locale", zap.Error(err))
	}
}

// onAlert is the blocking dialog shown when the session expires or the server
// goes away. Its single action either logs in again or waits for the server.
func (a *application) onAlert(alert session.Alert) {
	modal := "modals.server"
	if alert == session.AlertSessionExpired {
		modal = "modals.session"
	}

	fmt.Fprintf(a.errOut, "\n%s\n%s\n", a.t(modal+".title"), a.t(modal+".body"))
	if _, err := a.prompt.Select(a.t(modal+".title"), []string{a.t(modal + ".action")}); err != nil {
		a.logger.Debug("alert dismissed", zap.Stringer("alert", alert), zap.Error(err))
		return
	}

	switch alert {
	case session.AlertSessionExpired:
		if err := a.login(""); err != nil {
			a.logger.Debug("login after expiry failed", zap.Error(err))
		}
	case session.AlertServerDown:
		a.waitForServer()
	}
}

func (a *application) waitForServer() {
	back := utils.Poll(a.ctx, a.cfg.Retry.Attempts, a.cfg.Retry.Interval, func(attempt int) bool {
		if a.client.Ping(a.ctx) {
			return true
		}
		a.logger.Debug("server still down", zap.Int("attempt", attempt))
		return false
	})

	switch {
	case back:
		a.client.ClearAlerts()
		a.notify(toast.Success, "cli.server_back")
		return
	case a.ctx.Err() != nil:
		return
	}

	a.notify(toast.Error, "cli.server_still_down")
}
