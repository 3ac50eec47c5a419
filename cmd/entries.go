package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/profile"
	"github.com/nzsystems/rezume/internal/toast"
)

// section describes the commands of one profile collection.
type section struct {
	kind     profile.Kind
	use      string
	short    string
	savedKey string
	// fields are the string flags of add and update, mapped to the JSON keys.
	fields []string
	// positional is the field filled by the first argument of add.
	positional string
	build      func(values map[string]string) profile.Entity
	// patch is nil when entries of this kind cannot be edited.
	patch func(e profile.Entity, changed map[string]string) profile.Entity
}

var sections = []section{
	{
		kind:     profile.KindExperience,
		use:      "experience",
		short:    "Manage work experiences",
		savedKey: "toasts.experience_saved",
		fields:   []string{"title", "company", "location", "description", "start-date", "end-date"},
		build: func(v map[string]string) profile.Entity {
			return profile.Experience{
				Title:       v["title"],
				Company:     v["company"],
				Location:    v["location"],
				Description: v["description"],
				StartDate:   v["start-date"],
				EndDate:     v["end-date"],
			}
		},
		patch: func(e profile.Entity, v map[string]string) profile.Entity {
			exp := e.(profile.Experience)
			set(&exp.Title, v, "title")
			set(&exp.Company, v, "company")
			set(&exp.Location, v, "location")
			set(&exp.Description, v, "description")
			set(&exp.StartDate, v, "start-date")
			set(&exp.EndDate, v, "end-date")
			return exp
		},
	},
	{
		kind:     profile.KindEducation,
		use:      "education",
		short:    "Manage education entries",
		savedKey: "toasts.education_saved",
		fields:   []string{"institution", "degree", "start-date", "end-date", "description", "mention"},
		build: func(v map[string]string) profile.Entity {
			return profile.Education{
				Institution: v["institution"],
				Degree:      v["degree"],
				StartDate:   v["start-date"],
				EndDate:     v["end-date"],
				Description: v["description"],
				Mention:     v["mention"],
			}
		},
		patch: func(e profile.Entity, v map[string]string) profile.Entity {
			edu := e.(profile.Education)
			set(&edu.Institution, v, "institution")
			set(&edu.Degree, v, "degree")
			set(&edu.StartDate, v, "start-date")
			set(&edu.EndDate, v, "end-date")
			set(&edu.Description, v, "description")
			set(&edu.Mention, v, "mention")
			return edu
		},
	},
	{
		kind:       profile.KindSkill,
		use:        "skill",
		short:      "Manage skills",
		savedKey:   "toasts.skill_added",
		fields:     []string{"category"},
		positional: "name",
		build: func(v map[string]string) profile.Entity {
			return profile.Skill{Name: v["name"], Category: v["category"]}
		},
	},
	{
		kind:       profile.KindLanguage,
		use:        "language",
		short:      "Manage spoken languages",
		savedKey:   "toasts.language_added",
		fields:     []string{"level"},
		positional: "name",
		build: func(v map[string]string) profile.Entity {
			return profile.Language{Name: v["name"], Level: v["level"]}
		},
	},
}

func set(dst *string, values map[string]string, key string) {
	if v, ok := values[key]; ok {
		*dst = v
	}
}

func init() {
	for _, s := range sections {
		rootCmd.AddCommand(s.command())
	}
}

func (s section) command() *cobra.Command {
	parent := &cobra.Command{
		Use:   s.use,
		Short: s.short,
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		Args:  cobra.NoArgs,
		RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
			values := flagValues(cmd, s.fields, false)
			if s.positional != "" {
				values[s.positional] = strings.Join(args, " ")
			}
			return a.addEntry(s.build(values), s.savedKey)
		}),
	}
	if s.positional != "" {
		add.Use = "add " + strings.ToUpper(s.positional)
		add.Args = cobra.MinimumNArgs(1)
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entries",
		Args:    cobra.NoArgs,
		RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
			return a.listEntries(s.kind)
		}),
	}

	del := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an entry",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(a *application, _ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return a.fail(err, "toasts.delete_error")
			}
			return a.deleteEntry(s.kind, id)
		}),
	}

	parent.AddCommand(add, list, del)
	for _, f := range s.fields {
		add.Flags().String(f, "", strings.ReplaceAll(f, "-", " "))
	}

	if s.patch != nil {
		update := &cobra.Command{
			Use:   "update ID",
			Short: "Edit an entry",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return a.fail(err, "toasts.save_error")
				}
				return a.updateEntry(s, id, flagValues(cmd, s.fields, true))
			}),
		}
		for _, f := range s.fields {
			update.Flags().String(f, "", strings.ReplaceAll(f, "-", " "))
		}
		parent.AddCommand(update)
	}

	return parent
}

// flagValues reads the string flags. With onlyChanged, flags left at their
// default are omitted so an update keeps the current value.
func flagValues(cmd *cobra.Command, names []string, onlyChanged bool) map[string]string {
	values := make(map[string]string, len(names))
	for _, name := range names {
		if onlyChanged && !cmd.Flags().Changed(name) {
			continue
		}
		v, _ := cmd.Flags().GetString(name)
		values[name] = v
	}
	return values
}

func parseID(arg string) (profile.ID, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return profile.ID{}, &apierr.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not an entry id", arg)}
	}
	return profile.ServerID(id), nil
}

func (a *application) addEntry(item profile.Entity, savedKey string) error {
	if err := item.Validate(); err != nil {
		return a.fail(err, "toasts.save_error")
	}
	if err := a.requireSession(false); err != nil {
		return err
	}

	created, err := a.client.Profile().Create(a.ctx, item)
	if err != nil {
		return a.fail(err, "toasts.save_error")
	}

	a.notify(toast.Success, savedKey)
	fmt.Fprintln(a.out, describe(created))
	return nil
}

func (a *application) updateEntry(s section, id profile.ID, changed map[string]string) error {
	if err := a.requireSession(true); err != nil {
		return err
	}

	current, ok := find(a.client.Cache().Collection(s.kind), id)
	if !ok {
		return a.fail(&apierr.ValidationError{Field: "id", Reason: fmt.Sprintf("%s not found", id)}, "toasts.save_error")
	}

	updated, err := a.client.Profile().Update(a.ctx, s.patch(current, changed))
	if err != nil {
		return a.fail(err, "toasts.save_error")
	}

	a.notify(toast.Success, s.savedKey)
	fmt.Fprintln(a.out, describe(updated))
	return nil
}

func (a *application) deleteEntry(kind profile.Kind, id profile.ID) error {
	if err := a.requireSession(false); err != nil {
		return err
	}

	if err := a.client.Profile().Delete(a.ctx, kind, id); err != nil {
		return a.fail(err, "toasts.delete_error")
	}

	a.notify(toast.Info, "toasts.entry_deleted")
	return nil
}

func (a *application) listEntries(kind profile.Kind) error {
	if err := a.requireSession(true); err != nil {
		return err
	}
	a.printSection(kind)
	return nil
}

func (a *application) printSection(kind profile.Kind) {
	fmt.Fprintf(a.out, "%s\n", a.t("profile.sections."+string(kind)))

	items := a.client.Cache().Collection(kind)
	if len(items) == 0 {
		fmt.Fprintf(a.out, "  %s\n", a.t("profile.empty."+string(kind)))
		return
	}
	for _, item := range items {
		line := describe(item)
		if item.EntityID().IsLocal() {
			line += " (" + a.t("profile.unsaved") + ")"
		}
		fmt.Fprintf(a.out, "  %s\n", line)
	}
}

func find(items []profile.Entity, id profile.ID) (profile.Entity, bool) {
	for _, item := range items {
		if item.EntityID() == id {
			return item, true
		}
	}
	return nil, false
}

// describe renders an entry on a single line, prefixed by its server id.
func describe(e profile.Entity) string {
	var text string
	switch v := e.(type) {
	case profile.Experience:
		text = join(" · ", v.Title, v.Company, dates(v.StartDate, v.EndDate))
	case profile.Education:
		text = join(" · ", v.Institution, v.Degree, dates(v.StartDate, v.EndDate))
	case profile.Skill:
		text = join(" · ", v.Name, v.Category)
	case profile.Language:
		text = join(" · ", v.Name, v.Level)
	}

	if id, ok := e.EntityID().Server(); ok {
		return fmt.Sprintf("#%d %s", id, text)
	}
	return text
}

func dates(start, end string) string {
	if start == "" && end == "" {
		return ""
	}
	return start + " - " + end
}

func join(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
