package main

import (
	"context"
	"fmt"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/spf13/cobra"
)

var gcUntilIdle bool

var gcCmd = &cobra.Command{
	Use:   "gc <path>",
	Short: "Run one incremental GC step, or loop until the cycle completes",
	Args:  cobra.ExactArgs(1),
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcUntilIdle, "until-idle", false, "keep stepping until the GC returns to idle")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	m := block.New(block.Options{Log: newLogger()})
	if err := m.Open(context.Background(), args[0]); err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer m.Close()

	cb := block.Callback{Notify: func(info block.GCInfo) {
		fmt.Printf("phase=%s marked=%d sweep=%d/%d\n", info.Phase, info.BlockCountMarked, info.SweepIndex, info.MaxIndex)
	}}

	if !gcUntilIdle {
		return m.GC(cb)
	}
	for {
		if err := m.GC(cb); err != nil {
			return err
		}
		info, err := m.GCInfo(context.Background())
		if err != nil {
			return err
		}
		if info.Phase == block.PhaseIdle {
			break
		}
	}
	fmt.Println("idle")
	return nil
}
