package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fmrest/fmrest-cli/internal/fmrest"
)

func newContainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "container",
		Aliases: []string{"ct"},
		Short:   "Work with container fields",
	}

	cmd.AddCommand(newContainerUploadCmd())

	return cmd
}

func newContainerUploadCmd() *cobra.Command {
	var repetition int
	var name string
	var mimeType string

	cmd := &cobra.Command{
		Use:   "upload <layout> <record-id> <field> <file>",
		Short: "Upload a file into a container field",
		Example: strings.TrimSpace(`
  fmrest container upload Contacts 12 Photo ./ada.png
  fmrest container upload Contacts 12 Scans ./page2.pdf --repetition 2
`),
		Args: cobra.ExactArgs(4),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			ids, err := ParseIntList(args[1:2])
			if err != nil {
				return err
			}
			field := strings.TrimSpace(args[2])
			if field == "" {
				return fmt.Errorf("container field name is required")
			}
			if repetition < 1 {
				return fmt.Errorf("--repetition must be >= 1")
			}

			path := args[3]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			file := fmrest.ContainerFile{
				FileName: valueOr(name, filepath.Base(path)),
				MimeType: valueOr(mimeType, detectMimeType(path)),
				Data:     data,
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s)

			ctx := cmdContext(cmd)
			db, err := s.Database()
			if err != nil {
				return err
			}
			var uploaded fmrest.RecordIDResponse
			previewed := false
			err = withLayout(ctx, s, args[0], func(layout string) error {
				req, err := s.UploadRequest(ctx, fmrest.Container(db, layout, ids[0], field, repetition), file)
				if err != nil {
					return err
				}
				if ok, err := maybeDryRun(cmd, "upload", fmt.Sprintf("%s to record %d field %s", file.FileName, ids[0], field), req); ok {
					previewed = true
					return err
				}
				env, err := call[fmrest.RecordIDResponse](ctx, s, req)
				if err != nil {
					return err
				}
				if env.Response != nil {
					uploaded = *env.Response
				}
				return nil
			})
			if err != nil || previewed {
				return err
			}

			if isStructured(cmd) {
				return printStructured(cmd, map[string]any{
					"recordId":  strconv.Itoa(ids[0]),
					"modId":     uploaded.ModID,
					"field":     field,
					"fileName":  file.FileName,
					"mimeType":  file.MimeType,
					"sizeBytes": len(file.Data),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes) to record %d field %s\n", file.FileName, len(file.Data), ids[0], field)
			return nil
		}),
	}

	cmd.Flags().IntVar(&repetition, "repetition", 1, "Field repetition to upload into")
	cmd.Flags().StringVar(&name, "name", "", "File name sent to the server (default: base name of the file)")
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "Content type of the file (default: from the extension)")
	flagAlias(cmd.Flags(), "repetition", "rep")

	return cmd
}

// detectMimeType guesses a content type from the file extension.
func detectMimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}
