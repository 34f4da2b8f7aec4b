package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmcsv/internal/config"
	"llmcsv/pkg/contract"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write llmcsv.yaml, .env and PROMPT.txt templates into the working directory",
		Long:  "在当前目录生成默认配置模板；已存在的文件保持不变。",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	written, err := config.WriteTemplates(".")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "生成默认配置失败: %v\n", err)
		return fmt.Errorf("init: %v: %w", err, contract.ErrFatalConfig)
	}
	out := cmd.OutOrStdout()
	if len(written) == 0 {
		fmt.Fprintln(out, "模板均已存在，未做修改。")
		return nil
	}
	for _, p := range written {
		fmt.Fprintf(out, "已生成 %s\n", p)
	}
	return nil
}
