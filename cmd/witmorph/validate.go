package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate TEMPLATE | validate SOURCE TARGET MAPPING",
	Short: "Check templates and a mapping for consistency",
	Long: `With one argument, checks a template for duplicate types, fields and states
and for transitions to unknown states. With three, also checks that the
mapping only references elements both templates declare, without planning.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("accepts 1 or 3 args, received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		source, err := witmorph.OpenTemplate(args[0])
		if err != nil {
			return err
		}
		if len(args) == 1 {
			tmpl, err := source.Load(ctx)
			if err != nil {
				return err
			}
			if err := witmorph.ValidateTemplate(tmpl); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s is valid! ✅\n", tmpl.Label())
			return nil
		}

		target, err := witmorph.OpenTemplate(args[1])
		if err != nil {
			return err
		}
		src, err := source.Load(ctx)
		if err != nil {
			return err
		}
		tgt, err := target.Load(ctx)
		if err != nil {
			return err
		}
		m, err := file.NewMappingSource(args[2]).Mapping(ctx)
		if err != nil {
			return err
		}
		if err := newPlanner().Validate(ctx, src, tgt, m); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mapping %s -> %s is valid! ✅\n", src.Label(), tgt.Label())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
