package main

import (
	"errors"
	"fmt"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin/inputs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const scoreSource = "cli"

func newScoreCmd(opts *options) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "score FILE...",
		Short: "Score files once and exit",
		Long: "Runs every file through the configured processors as one record, prints\n" +
			"the relationship each record reached and exits non-zero unless all of them\n" +
			"reached success.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
			}
			c, err := setupCore(opts, false)
			if err != nil {
				return err
			}
			if !c.Start() {
				c.Stop()
				return errors.New("failed to start core system")
			}

			results := make([]model.Relationship, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for i, path := range args {
				g.Go(func() error {
					record, err := inputs.ReadFileRecord(scoreSource, path)
					if err != nil {
						return err
					}
					results[i] = c.ProcessRecord(ctx, record)
					return nil
				})
			}
			err = g.Wait()

			// Stop delivers the scored records to the configured outputs
			c.Stop()
			if err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for i, path := range args {
				fmt.Fprintf(out, "%s %s\n", path, results[i].Name)
				if results[i].Name != model.RelSuccess.Name {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d records were not scored", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of files scored at once")
	return cmd
}
