package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skycoin/sgip/pkg/session"
	"github.com/skycoin/sgip/pkg/sgip"
)

var (
	spNumber    string
	userNumbers []string
	text        string
	codingName  string
	async       bool
	timeout     time.Duration
)

func init() {
	submitCmd.Flags().StringVarP(&spNumber, "sp", "s", "", "SP number the message is sent from")
	submitCmd.Flags().StringSliceVarP(&userNumbers, "to", "t", nil, "user numbers to send to")
	submitCmd.Flags().StringVarP(&text, "text", "m", "", "message text, hex for binary coding")
	submitCmd.Flags().StringVarP(&codingName, "coding", "c", "ascii", "message coding: one of [ascii, binary, ucs2, gbk]")
	submitCmd.Flags().BoolVarP(&async, "async", "a", false, "send all segments before waiting for responses")
	submitCmd.Flags().DurationVarP(&timeout, "timeout", "", 10*time.Second, "time to wait for each response")
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit [config-path]",
	Short: "Binds to the gateway, submits one message and unbinds",
	Args:  cobra.MaximumNArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if spNumber == "" || len(userNumbers) == 0 {
			return errors.New("both --sp and --to are required")
		}
		return nil
	},
	Run: func(_ *cobra.Command, args []string) {
		cfg.args = args

		cfg.startProfiler().
			startLogger().
			readConfig().
			bindSession().
			submit().
			unbindSession()
	},
}

func (cfg *runCfg) submit() *runCfg {
	coding, content, err := encodeContent(codingName, text)
	if err != nil {
		cfg.logger.Fatal(err)
	}
	msg := sgip.NewSubmit(spNumber, userNumbers[0], content)
	msg.UserNumbers = userNumbers
	msg.MessageCoding = coding

	ctx := context.Background()
	segments := msg.Segments(sgip.NewSegmenter(0))

	if !async {
		for i, seg := range segments {
			resp, err := cfg.session.Submit(ctx, seg, timeout)
			if err != nil {
				cfg.logger.Errorf("Segment %d/%d failed: %s", i+1, len(segments), err)
				return cfg
			}
			printSubmitResp(i, len(segments), resp)
		}
		return cfg
	}

	futures := make([]*session.Future, 0, len(segments))
	for i, seg := range segments {
		f, err := cfg.session.SubmitAsync(ctx, seg)
		if err != nil {
			cfg.logger.Errorf("Segment %d/%d failed: %s", i+1, len(segments), err)
			break
		}
		futures = append(futures, f)
	}
	for i, f := range futures {
		if ok, err := f.AwaitTimeout(ctx, timeout); !ok || err != nil {
			cfg.logger.Errorf("Segment %d/%d got no response within %s", i+1, len(segments), timeout)
			continue
		}
		if cause := f.Cause(); cause != nil {
			cfg.logger.Errorf("Segment %d/%d failed: %s", i+1, len(segments), cause)
			continue
		}
		resp, _ := f.Response()
		if r, ok := resp.(*sgip.SubmitResp); ok {
			printSubmitResp(i, len(segments), r)
		}
	}
	return cfg
}

func printSubmitResp(i, total int, resp *sgip.SubmitResp) {
	fmt.Printf("segment %d/%d: seq [%d] result [0x%02X]\n", i+1, total, resp.SequenceNumber(), resp.Result)
}
