package cmd

import (
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzsystems/rezume/internal/apierr"
	"github.com/nzsystems/rezume/internal/i18n"
	"github.com/nzsystems/rezume/internal/pdfdoc/pdfdoctest"
	"github.com/nzsystems/rezume/internal/profile"
	"github.com/nzsystems/rezume/internal/state"
	"github.com/nzsystems/rezume/internal/toast"
)

func loggedIn(t *testing.T, prompt prompter) (*fakeBackend, *harness) {
	t.Helper()

	b, srv := newFakeBackend(t)
	h := newHarness(t, srv.URL, prompt)
	require.NoError(t, h.app.login(""))

	return b, h
}

func TestLoginStoresSessionAndLocale(t *testing.T) {
	_, h := loggedIn(t, &scripted{})

	assert.Equal(t, i18n.EN, h.app.locale)
	assert.Equal(t, []string{"Logged in."}, h.toasts(toast.Success))

	st, err := state.Open(h.app.cfg.StateFile)
	require.NoError(t, err)
	assert.Len(t, st.Cookies(), 1)
	assert.Equal(t, "en", st.Locale())
	assert.Equal(t, profile.ThemeLight, st.Theme())
}

func TestLoginRejected(t *testing.T) {
	_, srv := newFakeBackend(t)
	h := newHarness(t, srv.URL, &scripted{})
	require.NoError(t, os.WriteFile(h.app.cfg.PasswordFile, []byte("wrong"), 0o600))

	err := h.app.login("")
	assert.ErrorIs(t, err, errReported)
	assert.ErrorIs(t, err, apierr.ErrInvalidCredentials)
	assert.Equal(t, []string{"Identifiants incorrects."}, h.toasts(toast.Error))
	assert.False(t, h.app.client.Status().ServerDown)
}

func TestLoginPromptsWithoutConfiguredCredentials(t *testing.T) {
	_, srv := newFakeBackend(t)
	prompt := &scripted{inputs: []string{testEmail, testPassword}}
	h := newHarness(t, srv.URL, prompt)
	h.app.cfg.Email = ""
	h.app.cfg.PasswordFile = ""
	t.Setenv(passwordEnv, "")

	require.NoError(t, h.app.login(""))
	assert.Equal(t, []string{"Email", "Mot de passe"}, prompt.labels)
}

func TestCommandsRequireSession(t *testing.T) {
	_, srv := newFakeBackend(t)
	h := newHarness(t, srv.URL, &scripted{})

	err := h.app.listEntries(profile.KindSkill)
	assert.ErrorIs(t, err, apierr.ErrUnauthenticated)
	assert.Contains(t, h.errOut.String(), "rezume login")
	assert.Empty(t, h.toasts(toast.Error))
}

func TestAddSkill(t *testing.T) {
	b, h := loggedIn(t, &scripted{})

	require.NoError(t, h.app.addEntry(profile.Skill{Name: "Python"}, "toasts.skill_added"))

	assert.Contains(t, h.out.String(), "#101 Python")
	assert.Contains(t, h.toasts(toast.Success), "Skill added!")
	assert.Len(t, b.collection("skills"), 1)
}

func TestAddSkillOfflineShowsOneError(t *testing.T) {
	b, h := loggedIn(t, &scripted{})
	before := h.app.client.Cache().Skills()
	b.set(func(b *fakeBackend) { b.offline = true })

	err := h.app.addEntry(profile.Skill{Name: "Python"}, "toasts.skill_added")
	assert.ErrorIs(t, err, apierr.ErrNetwork)

	assert.Equal(t, []string{"Network error"}, h.toasts(toast.Error))
	assert.Equal(t, before, h.app.client.Cache().Skills())
}

func TestInvalidEntryIsNotSent(t *testing.T) {
	b, h := loggedIn(t, &scripted{})
	sent := len(b.seen())

	err := h.app.addEntry(profile.Skill{Name: "  "}, "toasts.skill_added")
	assert.ErrorIs(t, err, apierr.ErrValidation)

	assert.Len(t, b.seen(), sent)
	assert.Contains(t, h.errOut.String(), "name is required")
	assert.Empty(t, h.toasts(toast.Error))
}

func TestUpdateAndDeleteEntry(t *testing.T) {
	b, h := loggedIn(t, &scripted{})
	b.set(func(b *fakeBackend) {
		b.collections["experiences"] = []map[string]any{{"id": int64(7), "title": "Dev", "company": "Acme"}}
	})

	s := sections[0]
	require.Equal(t, profile.KindExperience, s.kind)
	require.NoError(t, h.app.updateEntry(s, profile.ServerID(7), map[string]string{"title": "Lead"}))
	assert.Contains(t, h.out.String(), "#7 Lead · Acme")
	assert.Equal(t, "Lead", b.collection("experiences")[0]["title"])

	require.NoError(t, h.app.deleteEntry(profile.KindExperience, profile.ServerID(7)))
	assert.Contains(t, h.toasts(toast.Info), "Entry deleted.")
	assert.Empty(t, b.collection("experiences"))

	err := h.app.deleteEntry(profile.KindExperience, profile.ServerID(7))
	assert.ErrorIs(t, err, apierr.ErrRequestFailed)
	assert.Equal(t, []string{"Delete error: Not found"}, h.toasts(toast.Error))
}

func TestListEntries(t *testing.T) {
	b, h := loggedIn(t, &scripted{})
	b.set(func(b *fakeBackend) {
		b.collections["languages"] = []map[string]any{{"id": int64(3), "name": "English", "level": "C1"}}
	})

	require.NoError(t, h.app.listEntries(profile.KindLanguage))
	require.NoError(t, h.app.listEntries(profile.KindSkill))

	assert.Equal(t, "Languages\n  #3 English · C1\nSkills\n  No skills added.\n", h.out.String())
}

func TestImportReviewDropsEntryThenSaves(t *testing.T) {
	// Staged entries: education then skill. Drop the education entry, then
	// pick "save all" which is now second.
	b, h := loggedIn(t, &scripted{selects: []int{0, 1}, confirms: []bool{true}})

	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, pdfdoctest.Minimal(1), 0o600))

	require.NoError(t, h.app.importCV(path, false))

	var posts []string
	for _, r := range b.seen() {
		if strings.HasPrefix(r, "POST /api/profile/") {
			posts = append(posts, r)
		}
	}
	assert.Equal(t, []string{"POST /api/profile/upload-cv", "POST /api/profile/skills"}, posts)
	assert.Contains(t, b.seen(), "PUT /api/profile/me")
	assert.Equal(t, "Data Engineer", b.userField("title"))
	assert.Zero(t, h.app.client.Cache().LocalCount())
	assert.Contains(t, h.toasts(toast.Success), "The whole profile was saved successfully!")
}

func TestImportCancelSavesNothing(t *testing.T) {
	b, h := loggedIn(t, &scripted{selects: []int{3}})

	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, pdfdoctest.Minimal(1), 0o600))

	require.NoError(t, h.app.importCV(path, false))

	assert.NotContains(t, b.seen(), "POST /api/profile/skills")
	assert.Contains(t, h.out.String(), "Nothing was saved.")
}

func TestGenerateReusesGenerationForSameOffer(t *testing.T) {
	b, h := loggedIn(t, &scripted{})
	b.set(func(b *fakeBackend) {
		b.report = url.QueryEscape(`{"valid":false,"page_count":2,"warnings":["too long"]}`)
	})
	out := filepath.Join(t.TempDir(), "cv.pdf")

	require.NoError(t, h.app.generate("Go developer\n", out, false))
	require.NoError(t, h.app.generate("  Go developer", out, false))
	require.NoError(t, h.app.generate("Go developer", out, true))
	require.NoError(t, h.app.generate("Rust developer", out, false))

	assert.Equal(t, []string{"", "gen-1", "", ""}, b.generationsSent())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	assert.Contains(t, h.toasts(toast.Warning), "The generated CV spans more than one page or has issues.")
	assert.Contains(t, h.out.String(), "too long")
	assert.Equal(t, offerDigest("Rust developer"), h.app.state.Generation().OfferDigest)
}

func TestLogoutForgetsGeneration(t *testing.T) {
	_, h := loggedIn(t, &scripted{})
	require.NoError(t, h.app.state.SetGeneration(&state.Generation{OfferDigest: "d", ID: "gen-1"}))

	h.app.client.Logout(h.app.ctx)

	assert.Nil(t, h.app.state.Generation())
	assert.Empty(t, h.app.state.Cookies())
}

func TestExpiredSessionDialogLogsInAgain(t *testing.T) {
	prompt := &scripted{selects: []int{0}}
	b, h := loggedIn(t, prompt)
	b.set(func(b *fakeBackend) {
		b.revokeOn = "DELETE /api/profile/skills/1"
		b.collections["skills"] = []map[string]any{{"id": int64(1), "name": "Go"}}
	})

	err := h.app.deleteEntry(profile.KindSkill, profile.ServerID(1))
	require.Error(t, err)

	assert.Contains(t, h.errOut.String(), "Session Expired")
	assert.Empty(t, h.toasts(toast.Error))
	assert.Equal(t, []string{"Logged in.", "Logged in."}, h.toasts(toast.Success))

	st := h.app.client.Status()
	assert.True(t, st.Authenticated)
	assert.False(t, st.Expired)
}

func TestServerDownDialogWaitsForRecovery(t *testing.T) {
	prompt := &scripted{selects: []int{0}}
	b, h := loggedIn(t, prompt)
	b.set(func(b *fakeBackend) { b.down = true })
	prompt.onSelect = func() { b.set(func(b *fakeBackend) { b.down = false }) }

	err := h.app.addEntry(profile.Skill{Name: "Go"}, "toasts.skill_added")
	assert.ErrorIs(t, err, apierr.ErrServerDown)

	assert.Contains(t, h.errOut.String(), "Server Error")
	assert.Empty(t, h.toasts(toast.Error))
	assert.Contains(t, h.toasts(toast.Success), "The server is reachable again.")
	assert.False(t, h.app.client.Status().ServerDown)
}

func TestServerDownDialogGivesUp(t *testing.T) {
	prompt := &scripted{selects: []int{0}}
	b, h := loggedIn(t, prompt)
	b.set(func(b *fakeBackend) { b.down = true })

	_ = h.app.addEntry(profile.Skill{Name: "Go"}, "toasts.skill_added")

	assert.Equal(t, []string{"The server is still unreachable."}, h.toasts(toast.Error))
	assert.True(t, h.app.client.Status().ServerDown)

	pings := slices.DeleteFunc(b.seen(), func(r string) bool { return r != "GET /" })
	assert.Len(t, pings, 2)
}

func TestStatus(t *testing.T) {
	_, srv := newFakeBackend(t)
	h := newHarness(t, srv.URL, &scripted{})

	require.NoError(t, h.app.status())
	assert.Equal(t, "BACKEND CONNECTED  "+srv.URL+"\nNon connecté\n", h.out.String())

	require.NoError(t, h.app.login(""))
	h.out.Reset()
	require.NoError(t, h.app.status())
	assert.Contains(t, h.out.String(), "Logged in as "+testEmail)
}

func TestSelectTemplate(t *testing.T) {
	b, h := loggedIn(t, &scripted{selects: []int{1}})

	require.NoError(t, h.app.selectTemplate(""))
	assert.Equal(t, "classic", b.userField("selected_template"))
	assert.Contains(t, h.toasts(toast.Success), "Template selected!")

	h.out.Reset()
	require.NoError(t, h.app.listTemplates())
	assert.Contains(t, h.out.String(), "* classic")
}

func TestProfileLanguageSwitchesLocale(t *testing.T) {
	b, h := loggedIn(t, &scripted{})

	lang := profile.LanguageFR
	require.NoError(t, h.app.updateProfile(profile.UserUpdate{Language: &lang}, "toasts.settings_success", "toasts.settings_error"))

	assert.Equal(t, "fr", b.userField("language"))
	assert.Equal(t, i18n.FR, h.app.locale)
	assert.Contains(t, h.toasts(toast.Success), "Paramètres mis à jour !")

	bad := "de"
	err := h.app.updateProfile(profile.UserUpdate{Language: &bad}, "", "toasts.lang_error")
	assert.ErrorIs(t, err, apierr.ErrValidation)
}
