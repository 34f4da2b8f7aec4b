package main

import (
	"github.com/spf13/cobra"

	"llmcsv/internal/config"
	"llmcsv/internal/dupes"
)

func newDupesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dupes",
		Short: "Report identifiers sharing the same derived value in the output CSV",
		Args:  cobra.NoArgs,
		RunE:  runDupes,
	}
}

func runDupes(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	r, err := config.NewReader(s.cfg)
	if err != nil {
		return s.fail("dupes", "装配失败", err)
	}
	if _, err := dupes.Check(cmd.Context(), r, s.cfg.Output, s.cfg.DerivedColumn, cmd.OutOrStdout(), s.logger); err != nil {
		return s.fail("dupes", "重复检查失败", err)
	}
	return nil
}
