package main

import (
	"context"
	"fmt"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Print GC phase and block counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

func init() {
	rootCmd.AddCommand(statCmd)
}

func runStat(cmd *cobra.Command, args []string) error {
	m := block.New(block.Options{Log: newLogger()})
	if err := m.Open(context.Background(), args[0]); err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer m.Close()

	info, err := m.GCInfo(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("phase=%s block_count=%d block_count_marked=%d sweep_index=%d max_index=%d\n",
		info.Phase, info.BlockCount, info.BlockCountMarked, info.SweepIndex, info.MaxIndex)
	return nil
}
