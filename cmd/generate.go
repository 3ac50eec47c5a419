package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nzsystems/rezume/internal/builder"
	"github.com/nzsystems/rezume/internal/profile"
	"github.com/nzsystems/rezume/internal/state"
	"github.com/nzsystems/rezume/internal/toast"
)

const defaultOutput = "cv.pdf"

var analyzeCmd = &cobra.Command{
	Use:   "analyze OFFER_FILE|-",
	Short: "Score your profile against a job offer",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
		offer, err := readText(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		if err := a.requireSession(false); err != nil {
			return err
		}
		_, err = a.analyze(offer)
		return err
	}),
}

var generateCmd = &cobra.Command{
	Use:   "generate OFFER_FILE|-",
	Short: "Analyze a job offer and render a tailored PDF résumé",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
		offer, err := readText(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		fresh, _ := cmd.Flags().GetBool("fresh")
		return a.generate(offer, output, fresh)
	}),
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the available CV designs",
	Args:  cobra.NoArgs,
	RunE: withApp(func(a *application, _ *cobra.Command, _ []string) error {
		return a.listTemplates()
	}),
}

var templatesSelectCmd = &cobra.Command{
	Use:   "select [ID]",
	Short: "Choose the CV design used for generation",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(a *application, _ *cobra.Command, args []string) error {
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		return a.selectTemplate(id)
	}),
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize [TEXT...]",
	Short: "Rewrite an experience description",
	Long:  "Rewrite an experience description. Without arguments the text is read from stdin.",
	RunE: withApp(func(a *application, cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 0 {
			var err error
			if text, err = readText(cmd.InOrStdin(), "-"); err != nil {
				return err
			}
		}
		tone, _ := cmd.Flags().GetString("tone")
		return a.optimize(text, tone)
	}),
}

func init() {
	generateCmd.Flags().StringP("output", "o", defaultOutput, "where to write the PDF")
	generateCmd.Flags().Bool("fresh", false, "ignore the previous generation for the same offer")
	optimizeCmd.Flags().String("tone", builder.DefaultTone, "writing tone")

	templatesCmd.AddCommand(templatesSelectCmd)
	rootCmd.AddCommand(analyzeCmd, generateCmd, templatesCmd, optimizeCmd)
}

// readText reads a file, or stdin when name is "-".
func readText(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// offerDigest identifies a job offer regardless of surrounding whitespace.
func offerDigest(offer string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(offer)))
	return hex.EncodeToString(sum[:])
}

func (a *application) analyze(offer string) (*builder.Analysis, error) {
	analysis, err := a.builder.Analyze(a.ctx, offer)
	if err != nil {
		return nil, a.fail(err, "toasts.analysis_error")
	}

	a.notify(toast.Success, "toasts.analysis_success")
	fmt.Fprintf(a.out, "%s: %s\n", a.t("builder.results.score"), scoreColor(analysis.Score)("%d/100", analysis.Score))
	fmt.Fprintf(a.out, "%s: %s\n", a.t("builder.results.summary"), analysis.Summary)
	if len(analysis.Skills) > 0 {
		fmt.Fprintf(a.out, "%s: %s\n", a.t("builder.results.skillsDetected"), strings.Join(analysis.Skills, ", "))
	}
	if len(analysis.RawMatches) > 0 {
		fmt.Fprintf(a.out, "%s:\n", a.t("builder.results.experiencesMatched"))
		for _, m := range analysis.RawMatches {
			fmt.Fprintf(a.out, "  %s\n", join(" · ", str(m["title"]), str(m["company"])))
		}
	}

	return analysis, nil
}

func scoreColor(score int) func(format string, a ...any) string {
	switch {
	case score >= 70:
		return color.GreenString
	case score >= 40:
		return color.YellowString
	default:
		return color.RedString
	}
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (a *application) generate(offer, output string, fresh bool) error {
	if err := a.requireSession(false); err != nil {
		return err
	}

	analysis, err := a.analyze(offer)
	if err != nil {
		return err
	}

	digest := offerDigest(offer)
	req := builder.GenerateRequest{
		Experiences:  analysis.RawMatches,
		JobOfferText: offer,
	}
	if last := a.state.Generation(); last != nil && !fresh && last.OfferDigest == digest {
		req.GenerationID = last.ID
		fmt.Fprintf(a.out, "%s (%s)\n", a.t("cli.generation_reused"), last.ID)
	}

	a.notify(toast.Info, "toasts.pdf_generating")
	cv, err := a.builder.GenerateCV(a.ctx, req)
	if err != nil {
		return a.fail(err, "toasts.pdf_error")
	}

	if output == "" {
		output = defaultOutput
	}
	if err := os.WriteFile(output, cv.PDF, 0o644); err != nil {
		return err
	}

	if cv.GenerationID != "" {
		if err := a.state.SetGeneration(&state.Generation{OfferDigest: digest, ID: cv.GenerationID}); err != nil {
			a.logger.Warn("failed to store generation", zap.Error(err))
		}
	}

	a.notify(toast.Success, "toasts.pdf_success")
	fmt.Fprintf(a.out, "%s %s (%s: %d)\n", a.t("cli.cv_written"), output, a.t("builder.results.pages"), cv.Pages)
	a.report(cv)

	return nil
}

// report surfaces a failed validation of the generated CV.
func (a *application) report(cv *builder.GeneratedCV) {
	if cv.Report == nil || (cv.Report.Valid && len(cv.Report.Errors) == 0) {
		return
	}

	a.toasts.Add(a.t("toasts.report_warning"), toast.Warning, toast.WithDuration(toast.ReportDuration))

	fmt.Fprintf(a.out, "%s:\n", a.t("builder.results.report"))
	for _, line := range slices.Concat(cv.Report.Errors, cv.Report.Warnings) {
		fmt.Fprintf(a.out, "  %s\n", line)
	}
}

func (a *application) listTemplates() error {
	if err := a.requireSession(false); err != nil {
		return err
	}

	templates, err := a.builder.Templates(a.ctx)
	if err != nil {
		return a.fail(err, "toasts.template_error")
	}

	selected := a.client.Cache().User().SelectedTemplate
	for _, t := range templates {
		marker := " "
		if t.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s\t%s\t%s\n", marker, t.ID, t.Name, t.Description)
	}
	return nil
}

func (a *application) selectTemplate(id string) error {
	if id == "" {
		if err := a.requireSession(false); err != nil {
			return err
		}

		templates, err := a.builder.Templates(a.ctx)
		if err != nil {
			return a.fail(err, "toasts.template_error")
		}

		names := make([]string, 0, len(templates))
		for _, t := range templates {
			names = append(names, t.Name)
		}
		idx, err := a.prompt.Select(a.t("cli.select_template"), names)
		if err != nil {
			return err
		}
		id = templates[idx].ID
	}

	return a.updateProfile(profile.UserUpdate{SelectedTemplate: &id}, "toasts.template_selected", "toasts.template_error")
}

func (a *application) optimize(text, tone string) error {
	if err := a.requireSession(false); err != nil {
		return err
	}

	optimized, err := a.builder.OptimizeDescription(a.ctx, text, tone)
	if err != nil {
		return a.fail(err, "toasts.optimize_error")
	}

	a.notify(toast.Success, "toasts.optimize_success")
	fmt.Fprintln(a.out, optimized)
	return nil
}
