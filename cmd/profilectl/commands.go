package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/learning-profile/internal/config"
	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
	"github.com/ZanzyTHEbar/learning-profile/internal/profile"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "profilectl",
		Short: "Score and consolidate learning assessments",
		Long: `profilectl runs the learning profile engine against local JSON files.

Input files hold raw JSON; pass "-" to read from stdin.

Example:
  profilectl score answers.json --quiz-type parent_home --age-group 5-6
  profilectl consolidate sources.json
  profilectl weights --weights weighting.yaml`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newScoreCmd(opts),
		newConsolidateCmd(opts),
		newWeightsCmd(),
	)
	return root
}

// service builds a storage-less service. Scoring and consolidating caller
// weighted sources never consult the weighting policy, so the default is used.
func (o *rootOptions) service(cmd *cobra.Command) (*profile.Service, error) {
	logger := monitoring.NewLoggerWithWriter(cmd.ErrOrStderr(), monitoring.ParseLevel(o.logLevel))
	return profile.NewService(nil, nil, profile.DefaultWeightPolicy(), logger)
}

func loadPolicy(path string) (profile.WeightPolicy, error) {
	if path == "" {
		return profile.DefaultWeightPolicy(), nil
	}
	return config.LoadWeightPolicy(path)
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var quizType, ageGroup string

	cmd := &cobra.Command{
		Use:   "score <responses.json>",
		Short: "Score one assessment",
		Long: `Score one assessment. The file holds an object keyed by question id:
Likert answers (1-24) are numbers, preference answers (25-28) are strings and
Interests (28) may be a list, e.g.
  {"1": 4, "2": 5, "25": "hands-on", "28": ["art", "stories"]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var responses scoring.Responses
			if err := readJSON(cmd, args[0], &responses); err != nil {
				return err
			}
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			out, err := svc.Score(cmd.Context(), profile.ScoreRequest{
				Responses: responses,
				QuizType:  scoring.QuizType(quizType),
				AgeGroup:  scoring.AgeGroup(ageGroup),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&quizType, "quiz-type", string(scoring.QuizGeneral), "Quiz type: parent_home, teacher_classroom or general")
	cmd.Flags().StringVar(&ageGroup, "age-group", "", "Age group the quiz was set for, e.g. 5-6")
	return cmd
}

func newConsolidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate <sources.json>",
		Short: "Consolidate weighted score vectors",
		Long: `Consolidate weighted score vectors into one profile with an agreement
report. The file holds a JSON array of sources:
  [{"scores": {"Math": 4.2}, "weight": 0.6, "quizType": "teacher_classroom", "respondentType": "teacher"}]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sources []scoring.Source
			if err := readJSON(cmd, args[0], &sources); err != nil {
				return err
			}
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			out, err := svc.Consolidate(cmd.Context(), sources)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newWeightsCmd() *cobra.Command {
	var weightsFile string

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Validate a weighting policy and print it as YAML",
		Long: `Print the weighting policy the server would apply to stored assessments.
With --weights the file is merged over the defaults and validated first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy(weightsFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(policy); err != nil {
				return fmt.Errorf("failed to encode policy: %w", err)
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&weightsFile, "weights", "", "YAML weighting policy (default built-in policy)")
	return cmd
}

func readJSON(cmd *cobra.Command, path string, v interface{}) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
