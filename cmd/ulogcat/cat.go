package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flightlog/ulog/ulog"
	"github.com/spf13/cobra"
)

var (
	catStart   uint64
	catEnd     uint64
	catMsgIDs  string
	catNoLogs  bool
	catReverse bool
)

var catCmd = &cobra.Command{
	Use:   "cat [file]",
	Short: "Stream decoded Data and Log records from a ULog file to stdout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opened, err := openEngine(args[0])
		if err != nil {
			die("%s", err)
		}
		defer opened.Close()

		opts := ulog.DefaultReadOptions()
		opts.Reverse = catReverse
		opts.IncludeLogs = !catNoLogs
		if cmd.Flags().Changed("start") {
			opts.Start = &catStart
		}
		if cmd.Flags().Changed("end") {
			opts.End = &catEnd
		}
		if catMsgIDs != "" {
			ids, err := parseMsgIDs(catMsgIDs)
			if err != nil {
				die("%s", err)
			}
			opts.MsgIDs = ids
		}

		it, err := opened.engine.ReadMessages(opts)
		if err != nil {
			die("%s", err)
		}
		for {
			msg, err := it.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				die("%s", err)
			}
			switch {
			case msg.Data != nil:
				fmt.Printf("%d D msg_id=%d %s %v\n", msg.Timestamp, msg.MsgID, msg.Data.Definition, msg.Data.Fields)
			case msg.Log != nil:
				fmt.Printf("%d L level=%d tagged=%v tag=%d %s\n", msg.Timestamp, msg.Log.LogLevel, msg.Log.Tagged, msg.Log.Tag, msg.Log.Message)
			default:
				fmt.Printf("%d O offset=%d\n", msg.Timestamp, msg.Offset)
			}
		}
	},
}

func parseMsgIDs(s string) ([]uint16, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' })
	ids := make([]uint16, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid msg-id %q: %w", p, err)
		}
		ids = append(ids, uint16(n))
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().Uint64Var(&catStart, "start", 0, "start timestamp (inclusive)")
	catCmd.Flags().Uint64Var(&catEnd, "end", 0, "end timestamp (inclusive)")
	catCmd.Flags().StringVar(&catMsgIDs, "msg-ids", "", "comma-separated list of msg_id values to include")
	catCmd.Flags().BoolVar(&catNoLogs, "no-logs", false, "exclude Log and LogTagged records")
	catCmd.Flags().BoolVar(&catReverse, "reverse", false, "iterate in descending timestamp order")
}
