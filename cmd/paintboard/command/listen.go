package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paintboard/internal/draw"
	"paintboard/internal/protocol"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print strokes, clears and background changes pushed to the room",
	Long: `Subscribes to every push the server sends to the room and prints them until
interrupted. Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ctrl.SubscribeDraw(draw.OnMailbox(s.box, printPush)); err != nil {
			return err
		}
		if err := s.ctrl.SubscribeBackgroundPicture(draw.OnMailbox(s.box, printPush)); err != nil {
			return err
		}
		if err := s.ctrl.SubscribeClearDraw(draw.OnMailbox(s.box, printPush)); err != nil {
			return err
		}

		color.Yellow("🔔 listening to room %d, press Ctrl+C to stop", roomID)
		<-ctx.Done()
		fmt.Println()
		return nil
	},
}

func printPush(r draw.Result) {
	switch r.Op {
	case protocol.OpDrawPush:
		room, line, err := protocol.DecodeDraw(r.Message)
		if err != nil {
			color.Red("malformed draw push: %v", err)
			return
		}
		color.Cyan("[room %d] %s", room, describeLine(line))

	case protocol.OpBgPicPush:
		room, path, err := protocol.DecodeBgPic(r.Message)
		if err != nil {
			color.Red("malformed background push: %v", err)
			return
		}
		color.Magenta("[room %d] new background picture at %s", room, path)

	case protocol.OpClearDrawPush:
		room, err := protocol.DecodeClearPush(r.Message)
		if err != nil {
			color.Red("malformed clear push: %v", err)
			return
		}
		color.Yellow("[room %d] cleared", room)
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
