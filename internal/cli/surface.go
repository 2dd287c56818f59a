package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
)

var (
	surfaceRequestPath    string
	surfacePopulationPath string
	surfaceEnginePath     string
	surfaceRepeatedAxis   string
	surfaceLoadingAxis    string
)

var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Evaluate the criterion margin over a dose grid",
	Long: `surface evaluates the criterion margin and penalized objective at
every point of a repeated-by-loading dose grid and prints one JSON line per
point, for plotting the landscape around a recommendation.`,
	RunE: runSurface,
}

func init() {
	rootCmd.AddCommand(surfaceCmd)
	surfaceCmd.Flags().StringVar(&surfaceRequestPath, "request", "", "solve request YAML (required)")
	surfaceCmd.Flags().StringVar(&surfacePopulationPath, "population", "", "population spec YAML (built-in cohort when empty)")
	surfaceCmd.Flags().StringVar(&surfaceEnginePath, "engine", "", "engine settings YAML (built-in defaults when empty)")
	surfaceCmd.Flags().StringVar(&surfaceRepeatedAxis, "repeated", "", "repeated dose axis as min,max,steps (required)")
	surfaceCmd.Flags().StringVar(&surfaceLoadingAxis, "loading", "0,0,1", "loading dose axis as min,max,steps")
	if err := surfaceCmd.MarkFlagRequired("request"); err != nil {
		panic(err)
	}
	if err := surfaceCmd.MarkFlagRequired("repeated"); err != nil {
		panic(err)
	}
}

func runSurface(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(surfaceRequestPath)
	if err != nil {
		return err
	}
	spec, err := loadPopulation(surfacePopulationPath)
	if err != nil {
		return err
	}
	engine, err := loadEngine(surfaceEnginePath)
	if err != nil {
		return err
	}

	repeated, err := parseAxis(surfaceRepeatedAxis)
	if err != nil {
		return fmt.Errorf("invalid --repeated axis: %w", err)
	}
	loading, err := parseAxis(surfaceLoadingAxis)
	if err != nil {
		return fmt.Errorf("invalid --loading axis: %w", err)
	}

	solver := regimen.NewSolver(engine)
	points, err := solver.Surface(cmd.Context(), req, spec, repeated, loading)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, point := range points {
		if err := enc.Encode(point); err != nil {
			return err
		}
	}
	return nil
}

// parseAxis parses "min,max,steps" into an Axis.
func parseAxis(s string) (regimen.Axis, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return regimen.Axis{}, fmt.Errorf("want min,max,steps, got %q", s)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return regimen.Axis{}, fmt.Errorf("bad min %q: %w", parts[0], err)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return regimen.Axis{}, fmt.Errorf("bad max %q: %w", parts[1], err)
	}
	steps, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return regimen.Axis{}, fmt.Errorf("bad steps %q: %w", parts[2], err)
	}
	return regimen.Axis{Min: min, Max: max, Steps: steps}, nil
}
