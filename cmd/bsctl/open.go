package main

import (
	"context"
	"fmt"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Open (creating if necessary) a store file and print its state",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	m := block.New(block.Options{Log: newLogger()})
	if err := m.Open(context.Background(), args[0]); err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer m.Close()

	info, err := m.GCInfo(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("root=%d phase=%s blocks=%d\n", m.Root(), info.Phase, info.BlockCount)
	return nil
}
