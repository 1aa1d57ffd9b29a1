package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Report header, subscription, and parameter statistics for a ULog file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opened, err := openEngine(args[0])
		if err != nil {
			die("%s", err)
		}
		defer opened.Close()

		eng := opened.engine
		header, err := eng.Header()
		if err != nil {
			die("%s", err)
		}
		msgCount, _ := eng.MessageCount()
		logCount, _ := eng.LogCount()
		minTS, maxTS, haveRange, _ := eng.TimeRange()

		fmt.Printf("version: %d\n", header.Version)
		fmt.Printf("start timestamp: %d\n", header.StartTimestamp)
		fmt.Printf("messages: %d\n", msgCount)
		fmt.Printf("logs: %d\n", logCount)
		if haveRange {
			duration := time.Duration(maxTS-minTS) * time.Microsecond
			fmt.Printf("time range: [%d, %d] (%s)\n", minTS, maxTS, duration)
		} else {
			fmt.Println("time range: (no time-bearing records)")
		}

		if len(header.Information) > 0 {
			fmt.Println("information:")
			keys := make([]string, 0, len(header.Information))
			for k := range header.Information {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("\t%s: %v\n", k, header.Information[k])
			}
		}

		fmt.Printf("parameters: %d\n", len(header.Parameters))

		subs, err := eng.Subscriptions()
		if err != nil {
			die("%s", err)
		}
		counts, _ := eng.DataMessageCounts()

		ids := make([]uint16, 0, len(subs))
		for id := range subs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Println("subscriptions:")
		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			sub := subs[id]
			rows = append(rows, []string{
				fmt.Sprintf("%d", id),
				sub.Definition.Name,
				fmt.Sprintf("%d", sub.MultiID),
				fmt.Sprintf("%d msgs", counts[id]),
			})
		}
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"msg_id", "name", "multi_id", "count"})
		tw.SetBorder(false)
		tw.SetAutoWrapText(false)
		tw.SetAlignment(tablewriter.ALIGN_LEFT)
		tw.AppendBulk(rows)
		tw.Render()
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
