package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/internal/repository/postgres"
	"github.com/smartcity/traffic-analyzer/internal/service"
)

var (
	analyzeFormat      string
	analyzeExternal    bool
	analyzeWithRecords bool
)

// analyzeOutput is the printable part of a report
type analyzeOutput struct {
	RunID        string                 `json:"run_id" yaml:"run_id"`
	File         string                 `json:"file" yaml:"file"`
	TotalRecords int                    `json:"total_records" yaml:"total_records"`
	Locations    []string               `json:"locations" yaml:"locations"`
	TimeRange    domain.TimeRange       `json:"time_range" yaml:"time_range"`
	Analysis     *domain.AnalysisResult `json:"analysis" yaml:"analysis"`
	Baselines    domain.Baselines       `json:"baselines,omitempty" yaml:"baselines,omitempty"`
	Records      []domain.Observation   `json:"records,omitempty" yaml:"records,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.csv>",
	Short: "Run the anomaly pipeline on a local CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		delegationCfg := cfg.Delegation()
		if cmd.Flags().Changed("external") {
			delegationCfg.UseLocalAnalyzer = !analyzeExternal
		}
		delegation := service.NewDelegationClient(delegationCfg, nil)
		svc := service.NewAnalysisService(delegation, postgres.NewMockRepository(), nil, cfg.SampleLimit)

		report, err := svc.Analyze(context.Background(), raw, filepath.Base(path))
		svc.WaitBackground()
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("invalid CSV format:\n  - %s", strings.Join(verr.Reasons, "\n  - "))
			}
			return err
		}

		out := analyzeOutput{
			RunID:        report.RunID,
			File:         path,
			TotalRecords: report.TotalRecords,
			Locations:    report.Locations,
			TimeRange:    report.TimeRange,
			Analysis:     report.Result,
		}
		if analyzeWithRecords {
			out.Baselines = report.Baselines
			out.Records = report.Records
		}
		return writeOutput(cmd.OutOrStdout(), analyzeFormat, out)
	},
}

func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		// Round-trip through JSON so YAML keys match the API field names and order.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("convert output: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(&node)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", format)
	}
}

// blockStyle drops the flow/quoted styles inherited from JSON input
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "output format: json|yaml")
	analyzeCmd.Flags().BoolVar(&analyzeExternal, "external", false, "call the external analysis service (overrides config)")
	analyzeCmd.Flags().BoolVar(&analyzeWithRecords, "records", false, "include cleaned records and baselines in the output")
	rootCmd.AddCommand(analyzeCmd)
}
