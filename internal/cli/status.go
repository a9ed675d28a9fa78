package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/melih/rbuild/internal/core/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	freshColor   = color.New(color.FgGreen)
	expiredColor = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

func newStatusCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status FILE...",
		Short: "Report image staleness without rebuilding anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q, should be %q, %q or %q", output, outputText, outputJSON, outputYAML)
			}

			refs, err := absRefs(args)
			if err != nil {
				return err
			}

			engine, closeEngine, err := a.engine(cmd)
			if err != nil {
				return err
			}
			defer closeEngine()

			reports := make([]domain.StatusReport, 0, len(refs))
			for _, ref := range refs {
				report, err := engine.Status(cmd.Context(), ref)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			}
			return writeReports(cmd.OutOrStdout(), output, reports)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format, text, json or yaml")
	return cmd
}

func writeReports(w io.Writer, format string, reports []domain.StatusReport) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	default:
		for i, r := range reports {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeReport(w, r)
		}
		return nil
	}
}

func writeReport(w io.Writer, r domain.StatusReport) {
	fmt.Fprintf(w, "%s  %s\n", color.New(color.Bold).Sprint(r.Group), dimColor.Sprint(r.Ref))
	fmt.Fprintf(w, "  fingerprint %s  ttl %s\n", r.Fingerprint.Short(), r.TTL)

	if len(r.Containers) == 0 {
		fmt.Fprintln(w, "  no containers")
	}
	for _, v := range r.Containers {
		verdict := freshColor.Sprint("fresh")
		if v.Expired {
			verdict = expiredColor.Sprint("expired")
		}

		age := "unmanaged"
		if v.Provenance != nil {
			age = v.Age.Truncate(time.Second).String()
			if v.Provenance.Fingerprint != r.Fingerprint {
				age += ", config changed"
			}
		}
		fmt.Fprintf(w, "  %-30s %-8s %s (%s)\n", v.Container.Name, verdict, v.Container.Image, age)
	}

	decision := freshColor.Sprint("up to date")
	if r.Decision.Rebuild {
		decision = expiredColor.Sprintf("rebuild (%s)", r.Decision.Reason)
	}
	fmt.Fprintf(w, "  decision: %s\n", decision)
}
