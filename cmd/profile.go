package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/profile"
	"github.com/nzsystems/rezume/internal/toast"
)

// profileFlags maps the flags of "profile update" to the editable fields.
var profileFlags = map[string]func(*profile.UserUpdate, *string){
	"full-name":      func(u *profile.UserUpdate, v *string) { u.FullName = v },
	"title":          func(u *profile.UserUpdate, v *string) { u.Title = v },
	"summary":        func(u *profile.UserUpdate, v *string) { u.Summary = v },
	"portfolio-url":  func(u *profile.UserUpdate, v *string) { u.PortfolioURL = v },
	"linkedin-url":   func(u *profile.UserUpdate, v *string) { u.LinkedinURL = v },
	"search-status":  func(u *profile.UserUpdate, v *string) { u.SearchStatus = v },
	"llm-provider":   func(u *profile.UserUpdate, v *string) { u.LLMProvider = v },
	"llm-model":      func(u *profile.UserUpdate, v *string) { u.LLMModel = v },
	"openai-api-key": func(u *profile.UserUpdate, v *string) { u.OpenAIAPIKey = v },
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and edit your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the profile with every section",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
		if err := a.requireSession(true); err != nil {
			return err
		}
		a.printProfile()
		return nil
	}),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change general information",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, cmd *cobra.Command, _ []string) error {
		var upd profile.UserUpdate
		for name, apply := range profileFlags {
			if cmd.Flags().Changed(name) {
				v, _ := cmd.Flags().GetString(name)
				apply(&upd, &v)
			}
		}

		key := "toasts.settings_success"
		if upd.Title != nil && len(profileChanged(cmd)) == 1 {
			key = "toasts.title_success"
		}
		return a.updateProfile(upd, key, "toasts.settings_error")
	}),
}

var profileThemeCmd = &cobra.Command{
	Use:       "theme light|dark",
	Short:     "Switch the color theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{profile.ThemeLight, profile.ThemeDark},
	RunE: withApp(func(a *application, _ *cobra.Command, args []string) error {
		return a.updateProfile(profile.UserUpdate{Theme: &args[0]}, "toasts.settings_success", "toasts.settings_error")
	}),
}

var profileLanguageCmd = &cobra.Command{
	Use:       "language fr|en",
	Short:     "Switch the interface language",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{profile.LanguageFR, profile.LanguageEN},
	RunE: withApp(func(a *application, _ *cobra.Command, args []string) error {
		if err := a.updateProfile(profile.UserUpdate{Language: &args[0]}, "", "toasts.lang_error"); err != nil {
			return err
		}
		a.notify(toast.Success, "toasts.lang_success", args[0])
		return nil
	}),
}

var profilePhotoCmd = &cobra.Command{
	Use:   "photo FILE",
	Short: "Upload a profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *application, _ *cobra.Command, args []string) error {
		return a.uploadPhoto(args[0])
	}),
}

var profileSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the whole profile at once",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
		if err := a.requireSession(true); err != nil {
			return err
		}
		return a.saveAll()
	}),
}

func init() {
	for name := range profileFlags {
		profileUpdateCmd.Flags().String(name, "", "")
	}

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profileThemeCmd, profileLanguageCmd, profilePhotoCmd, profileSaveCmd)
	rootCmd.AddCommand(profileCmd)
}

func profileChanged(cmd *cobra.Command) []string {
	var changed []string
	for name := range profileFlags {
		if cmd.Flags().Changed(name) {
			changed = append(changed, name)
		}
	}
	return changed
}

// updateProfile sends upd. An empty successKey leaves the toast to the caller.
func (a *application) updateProfile(upd profile.UserUpdate, successKey, errorKey string) error {
	if err := upd.Validate(); err != nil {
		return a.fail(err, errorKey)
	}
	if err := a.requireSession(false); err != nil {
		return err
	}

	user, err := a.client.Profile().UpdateProfile(a.ctx, upd)
	if err != nil {
		return a.fail(err, errorKey)
	}

	if upd.Theme != nil {
		if err := a.state.SetTheme(*upd.Theme); err != nil {
			a.logger.Warn("failed to store theme", zap.Error(err))
		}
	}
	a.useLanguage(user.Language)

	if successKey != "" {
		a.notify(toast.Success, successKey)
	}
	return nil
}

func (a *application) uploadPhoto(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.requireSession(false); err != nil {
		return err
	}

	if _, err := a.client.Profile().UploadPhoto(a.ctx, filepath.Base(path), data); err != nil {
		return a.fail(err, "toasts.photo_error")
	}

	a.notify(toast.Success, "toasts.photo_success")
	return nil
}

func (a *application) saveAll() error {
	if err := a.client.Profile().SaveAll(a.ctx); err != nil {
		return a.fail(err, "toasts.save_all_error")
	}
	a.notify(toast.Success, "toasts.save_all_success")
	return nil
}

func (a *application) printProfile() {
	user := a.client.Cache().User()

	fmt.Fprintf(a.out, "%s\n", a.t("profile.sections.general"))
	rows := []struct{ key, value string }{
		{"auth.email", user.Email},
		{"profile.fields.fullName", user.FullName},
		{"profile.fields.currentTitle", user.Title},
		{"profile.fields.summary", user.Summary},
		{"profile.fields.portfolio", user.PortfolioURL},
		{"profile.fields.linkedin", user.LinkedinURL},
		{"profile.fields.template", user.SelectedTemplate},
		{"modals.settings.language", user.Language},
		{"modals.settings.theme", user.Theme},
	}
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		fmt.Fprintf(a.out, "  %s: %s\n", a.t(r.key), r.value)
	}

	for _, kind := range profile.Kinds {
		fmt.Fprintln(a.out)
		a.printSection(kind)
	}
}
