package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GNS-Science/solvis-query/internal/model"
	"github.com/GNS-Science/solvis-query/internal/query"
)

type queryFlags struct {
	filter     string
	filterFile string
	sortBy     []string
	first      int
	after      string
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run a rupture filter query against the configured catalogues",
	}
	queryCmd.PersistentFlags().StringVar(&f.filter, "filter", "", "filter criteria as JSON")
	queryCmd.PersistentFlags().StringVar(&f.filterFile, "filter-file", "", "file holding the filter criteria as JSON")

	sectionsCmd := &cobra.Command{
		Use:   "sections",
		Short: "Aggregate the filtered ruptures by fault section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.criteria()
			if err != nil {
				return err
			}
			res, err := a.service().FilterRuptureSections(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	rupturesCmd := &cobra.Command{
		Use:   "ruptures",
		Short: "List one page of the filtered ruptures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.criteria()
			if err != nil {
				return err
			}
			keys, err := parseSortKeys(f.sortBy)
			if err != nil {
				return err
			}
			conn, err := a.service().FilterRuptures(cmd.Context(), c, keys,
				query.PageRequest{First: f.first, After: f.after})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conn)
		},
	}
	rupturesCmd.Flags().StringSliceVar(&f.sortBy, "sort", nil, "sort keys as attribute[:asc|:desc], most significant first")
	rupturesCmd.Flags().IntVar(&f.first, "first", 0, "page size")
	rupturesCmd.Flags().StringVar(&f.after, "after", "", "cursor of the last rupture on the previous page")

	mfdCmd := &cobra.Command{
		Use:   "mfd",
		Short: "Print the magnitude-frequency distribution of the filtered ruptures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.criteria()
			if err != nil {
				return err
			}
			bins, err := a.service().MFD(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), bins)
		},
	}

	queryCmd.AddCommand(sectionsCmd, rupturesCmd, mfdCmd)
	return queryCmd
}

func (f *queryFlags) criteria() (model.FilterCriteria, error) {
	var c model.FilterCriteria
	data := []byte(f.filter)
	if f.filterFile != "" {
		if f.filter != "" {
			return c, fmt.Errorf("--filter and --filter-file are mutually exclusive")
		}
		var err error
		if data, err = os.ReadFile(f.filterFile); err != nil {
			return c, fmt.Errorf("failed to read filter file: %w", err)
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, fmt.Errorf("a filter is required (--filter or --filter-file)")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("invalid filter: %w", err)
	}
	return c, nil
}

// parseSortKeys reads "attribute[:asc|:desc]" flags.
func parseSortKeys(specs []string) ([]model.SortKey, error) {
	keys := make([]model.SortKey, 0, len(specs))
	for _, spec := range specs {
		attr, dir, _ := strings.Cut(spec, ":")
		key := model.SortKey{Attribute: strings.TrimSpace(attr), Ascending: true}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			key.Ascending = false
		default:
			return nil, fmt.Errorf("invalid sort direction %q in %q", dir, spec)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
