package command

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paintboard/internal/draw"
	"paintboard/internal/protocol"
)

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Send one stroke to the room",
	Example: `  paintboard draw --room 3 --points "10,10 50,80 120,40" --color "#ff0000" --width 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pointsFlag, _ := cmd.Flags().GetString("points")
		colorFlag, _ := cmd.Flags().GetString("color")
		canvasFlag, _ := cmd.Flags().GetString("canvas")
		width, _ := cmd.Flags().GetFloat64("width")
		eraser, _ := cmd.Flags().GetBool("eraser")

		points, err := parsePoints(pointsFlag)
		if err != nil {
			return err
		}
		argb, err := parseColor(colorFlag)
		if err != nil {
			return err
		}
		cw, ch, err := parseCanvas(canvasFlag)
		if err != nil {
			return err
		}
		line := protocol.Line{
			Points:       points,
			Color:        argb,
			StrokeWidth:  width,
			Eraser:       eraser,
			CanvasWidth:  cw,
			CanvasHeight: ch,
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.await(cmd.Context(), func(h draw.Handler) bool {
			return s.ctrl.SendDraw(h, time.Now().UnixMilli(), roomID, line)
		})
		if err != nil {
			return err
		}
		if err := checkStatus(res.Message); err != nil {
			return err
		}
		color.Green("✅ drew %s in room %d", describeLine(line), roomID)
		return nil
	},
}

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "List the strokes drawn in the room",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.await(cmd.Context(), func(h draw.Handler) bool {
			return s.ctrl.GetDrawList(h, time.Now().UnixMilli(), roomID)
		})
		if err != nil {
			return err
		}
		lines, err := protocol.DecodeDrawList(res.Message)
		if err != nil {
			return err
		}

		color.Cyan("room %d has %d stroke(s)", roomID, len(lines))
		for i, line := range lines {
			fmt.Printf("%4d  %s\n", i+1, describeLine(line))
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear every stroke of the room",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.await(cmd.Context(), s.ctrl.ClearDraw)
		if err != nil {
			return err
		}
		if err := checkStatus(res.Message); err != nil {
			return err
		}
		color.Green("✅ cleared room %d", roomID)
		return nil
	},
}

func checkStatus(msg protocol.Message) error {
	status, err := msg.Status()
	if err != nil {
		return err
	}
	if status != protocol.StatusOK {
		return fmt.Errorf("%s rejected by server (status %d)", msg.OpCode(), status)
	}
	return nil
}

func init() {
	drawCmd.Flags().String("points", "", `points as "x,y x,y ..." (required)`)
	drawCmd.Flags().String("color", "#000000", "stroke color, #rrggbb, #aarrggbb or decimal ARGB")
	drawCmd.Flags().Float64("width", 5, "stroke width")
	drawCmd.Flags().Bool("eraser", false, "draw with the eraser")
	drawCmd.Flags().String("canvas", "1080x1920", "canvas size the points refer to")
	drawCmd.MarkFlagRequired("points")

	rootCmd.AddCommand(drawCmd)
	rootCmd.AddCommand(linesCmd)
	rootCmd.AddCommand(clearCmd)
}
