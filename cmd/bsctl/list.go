package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hchenqi/blockstore/internal/block"
	"github.com/hchenqi/blockstore/internal/codec"
	"github.com/hchenqi/blockstore/internal/container/list"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Exercise the string list container rooted at the file's root block",
}

var listPushBackCmd = &cobra.Command{
	Use:   "push-back <path> <value>",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return withRootList(args[0], func(l *list.List[string]) error { return l.PushBack(args[1]) }) },
}

var listPushFrontCmd = &cobra.Command{
	Use:   "push-front <path> <value>",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return withRootList(args[0], func(l *list.List[string]) error { return l.PushFront(args[1]) }) },
}

var listPopFrontCmd = &cobra.Command{
	Use:  "pop-front <path>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRootList(args[0], func(l *list.List[string]) error {
			v, err := l.Front()
			if err != nil {
				return err
			}
			if err := l.PopFront(); err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		})
	},
}

var listPopBackCmd = &cobra.Command{
	Use:  "pop-back <path>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRootList(args[0], func(l *list.List[string]) error {
			v, err := l.Back()
			if err != nil {
				return err
			}
			if err := l.PopBack(); err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		})
	},
}

var listShowCmd = &cobra.Command{
	Use:  "show <path>",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRootList(args[0], func(l *list.List[string]) error {
			var values []string
			it, err := l.Begin()
			if err != nil {
				return err
			}
			for !it.AtEnd() {
				v, err := it.Value()
				if err != nil {
					return err
				}
				values = append(values, v)
				it, err = it.Next()
				if err != nil {
					return err
				}
			}
			fmt.Println(strings.Join(values, ", "))
			return nil
		})
	},
}

func init() {
	listCmd.AddCommand(listPushBackCmd, listPushFrontCmd, listPopFrontCmd, listPopBackCmd, listShowCmd)
	rootCmd.AddCommand(listCmd)
}

// withRootList opens path, wraps its root block as a string list
// (bootstrapping it on first use), runs f inside a single transaction,
// and closes the store.
func withRootList(path string, f func(*list.List[string]) error) error {
	m := block.New(block.Options{Log: newLogger()})
	if err := m.Open(context.Background(), path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer m.Close()

	return m.Transaction(func() error {
		l, err := list.Bootstrap(m, codec.String{}, m.Root())
		if err != nil {
			return err
		}
		return f(l)
	})
}
