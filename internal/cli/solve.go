package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryantjarrett/CTSI-2024/internal/regimen"
	"github.com/ryantjarrett/CTSI-2024/pkg/logger"
	"github.com/ryantjarrett/CTSI-2024/pkg/models"
)

var (
	solveRequestPath    string
	solvePopulationPath string
	solveEnginePath     string
	solveOutputPath     string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve one dosing request and print the recommendation as JSON",
	RunE:  runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVar(&solveRequestPath, "request", "", "solve request YAML (required)")
	solveCmd.Flags().StringVar(&solvePopulationPath, "population", "", "population spec YAML (built-in cohort when empty)")
	solveCmd.Flags().StringVar(&solveEnginePath, "engine", "", "engine settings YAML (built-in defaults when empty)")
	solveCmd.Flags().StringVar(&solveOutputPath, "output", "-", "write the response JSON here (- for stdout)")
	if err := solveCmd.MarkFlagRequired("request"); err != nil {
		panic(err)
	}
}

func runSolve(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(solveRequestPath)
	if err != nil {
		return err
	}
	spec, err := loadPopulation(solvePopulationPath)
	if err != nil {
		return err
	}
	engine, err := loadEngine(solveEnginePath)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if solveOutputPath != "" && solveOutputPath != "-" {
		f, err := os.Create(solveOutputPath)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	solver := regimen.NewSolver(engine)
	resp, solveErr := solver.Solve(cmd.Context(), req, spec)
	if solveErr != nil {
		// Budget exhaustion still carries the best iterate; print it
		// before failing so the caller sees where the search stood.
		var failed *models.OptimizationFailedError
		if errors.As(solveErr, &failed) && resp != nil {
			logger.Warn("optimizer ran out of budget", "status", failed.Status)
			if err := printJSON(out, resp); err != nil {
				return err
			}
		}
		return solveErr
	}
	return printJSON(out, resp)
}
