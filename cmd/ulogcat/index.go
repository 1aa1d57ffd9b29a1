package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Print the time range, message count, and per-msg_id Data counts built during open()",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opened, err := openEngine(args[0])
		if err != nil {
			die("%s", err)
		}
		defer opened.Close()

		eng := opened.engine
		msgCount, _ := eng.MessageCount()
		logCount, _ := eng.LogCount()
		minTS, maxTS, haveRange, _ := eng.TimeRange()

		fmt.Printf("indexed records: %d\n", msgCount)
		fmt.Printf("log records: %d\n", logCount)
		if haveRange {
			fmt.Printf("time range: [%d, %d]\n", minTS, maxTS)
		} else {
			fmt.Println("time range: (no time-bearing records)")
		}

		subs, err := eng.Subscriptions()
		if err != nil {
			die("%s", err)
		}
		counts, err := eng.DataMessageCounts()
		if err != nil {
			die("%s", err)
		}

		ids := make([]uint16, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			name := "?"
			if sub, ok := subs[id]; ok {
				name = sub.Definition.Name
			}
			rows = append(rows, []string{fmt.Sprintf("%d", id), name, fmt.Sprintf("%d", counts[id])})
		}
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"msg_id", "name", "count"})
		tw.SetBorder(false)
		tw.SetAlignment(tablewriter.ALIGN_LEFT)
		tw.AppendBulk(rows)
		tw.Render()
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
