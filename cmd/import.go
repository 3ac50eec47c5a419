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

var importCmd = &cobra.Command{
	Use:   "import FILE.pdf",
	Short: "Fill the profile from an existing PDF résumé",
	Long: `Upload a PDF résumé, review the extracted entries and save them.

The extracted sections replace the ones shown in the profile until they are
saved. Entries can be dropped one by one before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		return a.importCV(args[0], yes)
	}),
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "save the imported entries without review")
	rootCmd.AddCommand(importCmd)
}

func (a *application) importCV(path string, yes bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := a.requireSession(true); err != nil {
		return err
	}

	imported, err := a.client.Profile().ImportCV(a.ctx, filepath.Base(path), data)
	if err != nil {
		return a.fail(err, "toasts.import_error")
	}
	a.notify(toast.Success, "toasts.import_success")
	a.logger.Debug("entries staged", zap.Int("total", imported.Total()))

	if yes {
		return a.saveAll()
	}
	return a.review()
}

// review lets the user drop staged entries until they save or cancel.
func (a *application) review() error {
	for {
		var staged []profile.Entity
		for _, kind := range profile.Kinds {
			staged = append(staged, a.client.Cache().Collection(kind)...)
		}

		items := make([]string, 0, len(staged)+2)
		for _, e := range staged {
			items = append(items, fmt.Sprintf("%s: %s", a.t("profile.sections."+string(e.Kind())), describe(e)))
		}
		saveIdx, cancelIdx := len(items), len(items)+1
		items = append(items, a.t("cli.save_all"), a.t("cli.cancel"))

		idx, err := a.prompt.Select(a.t("cli.review"), items)
		if err != nil {
			return err
		}

		switch idx {
		case saveIdx:
			return a.saveAll()
		case cancelIdx:
			fmt.Fprintln(a.out, a.t("cli.nothing_saved"))
			return nil
		}

		entry := staged[idx]
		ok, err := a.prompt.Confirm(a.t("cli.discard_entry"))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := a.client.Profile().Delete(a.ctx, entry.Kind(), entry.EntityID()); err != nil {
			return a.fail(err, "toasts.delete_error")
		}
	}
}
