package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirecache/wirecache/internal/bytesize"
	"github.com/wirecache/wirecache/internal/cli/output"
)

var cacheSizeCmd = &cobra.Command{
	Use:   "cache-size",
	Short: "Show per-namespace cache footprint",
	RunE:  runCacheSize,
}

func runCacheSize(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	printer, err := newPrinter()
	if err != nil {
		return err
	}

	sizes, err := client.CacheSizes()
	if err != nil {
		return err
	}

	if printer.Format() != output.FormatTable {
		return printer.Print(sizes)
	}

	if len(sizes) == 0 {
		fmt.Println("Cache is empty")
		return nil
	}

	table := output.NewTableData("Namespace", "Entries", "Size")
	var totalEntries int
	var totalBytes int64
	for _, ns := range sizes {
		table.AddRow(ns.Namespace,
			fmt.Sprintf("%d", ns.Entries),
			bytesize.ByteSize(ns.Bytes).String())
		totalEntries += ns.Entries
		totalBytes += ns.Bytes
	}
	table.AddRow("total",
		fmt.Sprintf("%d", totalEntries),
		bytesize.ByteSize(totalBytes).String())

	return output.PrintTable(os.Stdout, table)
}
