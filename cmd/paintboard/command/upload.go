package command

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"paintboard/internal/protocol"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <picture>",
	Short: "Set the room's background picture",
	Long: `Asks the server where to upload a background picture, then uploads the file.
Everyone in the room receives the new background.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read picture: %w", err)
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.await(cmd.Context(), s.ctrl.AskUploadPic)
		if err != nil {
			return err
		}
		reply, err := protocol.DecodeUploadPic(res.Message)
		if err != nil {
			return err
		}
		if reply.Status != protocol.StatusOK {
			return fmt.Errorf("server refused the upload (status %d)", reply.Status)
		}

		base, err := httpBase(serverURL)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, base+reply.Path, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", http.DetectContentType(data))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("upload picture: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("upload picture: %s: %s", resp.Status, bytes.TrimSpace(body))
		}

		color.Green("✅ uploaded %s (%d bytes) as background of room %d", args[0], len(data), roomID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}
