package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/logger"
	"github.com/nzsystems/rezume/internal/secrets"
	"github.com/nzsystems/rezume/internal/toast"
)

const passwordEnv = "REZUME_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log into your reZume account",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		return a.login(email)
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log into it",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		return a.register(email, name)
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Close the session and forget the stored cookies",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
		a.client.Logout(a.ctx)
		a.notify(toast.Info, "toasts.logout_success")
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show the backend and session status",
	Args:    cobra.NoArgs,
	RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
		return a.status()
	}),
}

func init() {
	loginCmd.Flags().String("email", "", "account email (default from config)")
	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("name", "", "full name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd)
}

func (a *application) credentials(email string) (string, string, error) {
	if email = strings.TrimSpace(email); email == "" {
		email = a.cfg.Email
	}
	if email == "" {
		var err error
		if email, err = a.prompt.Input(a.t("auth.email"), false); err != nil {
			return "", "", err
		}
	}

	password, err := secrets.Load(secrets.Source{Name: "password", File: a.cfg.PasswordFile, Env: passwordEnv})
	if errors.Is(err, secrets.ErrNotConfigured) {
		password, err = a.prompt.Input(a.t("auth.password"), true)
	}
	if err != nil {
		return "", "", err
	}

	return email, password, nil
}

func (a *application) login(email string) error {
	email, password, err := a.credentials(email)
	if err != nil {
		return err
	}

	err = a.client.Login(a.ctx, email, password)
	switch {
	case errors.Is(err, apierr.ErrInvalidCredentials):
		a.notify(toast.Error, "toasts.login_error")
		return fmt.Errorf("%w: %w", errReported, err)
	case err != nil:
		return a.fail(err, "toasts.login_error")
	}

	if user := a.client.Cache().User(); user != nil {
		a.useLanguage(user.Language)
	}
	logger.WithAccount(a.logger, email).Debug("session stored", zap.String("state", a.state.Path()))
	a.notify(toast.Success, "toasts.login_success")
	return nil
}

func (a *application) register(email, name string) error {
	email, password, err := a.credentials(email)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		if name, err = a.prompt.Input(a.t("auth.fullName"), false); err != nil {
			return err
		}
	}

	if err := a.client.Register(a.ctx, email, password, name); err != nil {
		return a.fail(err, "toasts.save_error")
	}

	a.notify(toast.Success, "toasts.register_success")
	return nil
}

func (a *application) status() error {
	backend := a.t("builder.backendOffline")
	if a.client.Ping(a.ctx) {
		backend = a.t("builder.backendOnline")
	}
	fmt.Fprintf(a.out, "%s  %s\n", backend, a.client.APIURL)

	ok, err := a.client.Refresh(a.ctx, false)
	if err != nil {
		return a.fail(err, "cli.refresh_error")
	}
	if !ok {
		fmt.Fprintln(a.out, a.t("cli.anonymous"))
		return nil
	}

	user := a.client.Cache().User()
	a.useLanguage(user.Language)
	fmt.Fprintf(a.out, "%s %s\n", a.t("cli.logged_in_as"), user.Email)
	return nil
}
