package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GNS-Science/solvis-query/internal/catalogue"
)

func newFaultsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "faults [model_id] [fault_system]",
		Short: "List the parent fault names of a fault system",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sol, err := a.catalogues.Solution(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, name := range sol.ParentFaultNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var input, output string

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Write a JSON composite solution into a catalogue archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			var data catalogue.CompositeData
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("invalid composite solution: %w", err)
			}
			cs, err := data.Build()
			if err != nil {
				return err
			}

			archive, err := catalogue.OpenArchive(output)
			if err != nil {
				return err
			}
			defer archive.Close()
			if err := archive.Write(cmd.Context(), data); err != nil {
				return err
			}

			a.logger.Info("catalogue archive written",
				zap.String("model_id", cs.ModelID()),
				zap.Strings("fault_systems", cs.FaultSystems()),
				zap.String("archive", output))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d fault systems) into %s\n",
				cs.ModelID(), len(cs.FaultSystems()), output)
			return nil
		},
	}
	importCmd.Flags().StringVar(&input, "input", "", "JSON composite solution to import")
	importCmd.Flags().StringVar(&output, "output", "", "archive file to write")
	importCmd.MarkFlagRequired("input")
	importCmd.MarkFlagRequired("output")
	return importCmd
}
