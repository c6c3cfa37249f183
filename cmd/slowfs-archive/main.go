// Command slowfs-archive exports a raw disk image to a compressed
// archive (for transfer or backup) and imports one back, per spec.md
// §6's "host CLI/driver owns disk paths and sizes" collaborator. This
// is purely a host-side interchange format; the core filesystem never
// sees compressed bytes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/cobra"
	"github.com/ulikunitz/xz"
	times "gopkg.in/djherbis/times.v1"
)

var codec string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "slowfs-archive",
		Short: "Export/import slowfs disk images as compressed archives",
	}

	export := &cobra.Command{
		Use:   "export IMAGE ARCHIVE",
		Short: "Compress a disk image into an archive",
		Args:  cobra.ExactArgs(2),
		RunE:  runExport,
	}
	export.Flags().StringVar(&codec, "codec", "lz4", "compression codec: lz4 or xz")

	imp := &cobra.Command{
		Use:   "import ARCHIVE IMAGE",
		Short: "Decompress an archive into a disk image",
		Args:  cobra.ExactArgs(2),
		RunE:  runImport,
	}
	imp.Flags().StringVar(&codec, "codec", "lz4", "compression codec: lz4 or xz")

	root.AddCommand(export, imp)
	return root
}

func newCompressWriter(codec string, dst io.Writer) (io.WriteCloser, error) {
	switch codec {
	case "lz4":
		return lz4.NewWriter(dst), nil
	case "xz":
		return xz.NewWriter(dst)
	default:
		return nil, fmt.Errorf("slowfs-archive: unknown codec %q", codec)
	}
}

func newDecompressReader(codec string, src io.Reader) (io.Reader, error) {
	switch codec {
	case "lz4":
		return lz4.NewReader(src), nil
	case "xz":
		return xz.NewReader(src)
	default:
		return nil, fmt.Errorf("slowfs-archive: unknown codec %q", codec)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	imagePath, archivePath := args[0], args[1]

	src, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("slowfs-archive: %w", err)
	}
	defer src.Close()

	if t, err := times.Stat(imagePath); err == nil {
		progressf("exporting %s (modified %s)\n", imagePath, t.ModTime())
	}

	dst, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("slowfs-archive: %w", err)
	}
	defer dst.Close()

	w, err := newCompressWriter(codec, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("slowfs-archive: compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("slowfs-archive: flushing %s: %w", codec, err)
	}

	progressf("wrote %s\n", archivePath)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	archivePath, imagePath := args[0], args[1]

	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("slowfs-archive: %w", err)
	}
	defer src.Close()

	r, err := newDecompressReader(codec, src)
	if err != nil {
		return err
	}

	dst, err := os.Create(imagePath)
	if err != nil {
		return fmt.Errorf("slowfs-archive: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("slowfs-archive: decompressing: %w", err)
	}

	progressf("wrote %s\n", imagePath)
	return nil
}

// progressf writes a progress line to stderr only when it's a
// terminal, so piping output to a file never picks up chatter.
func progressf(format string, a ...interface{}) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}
	fmt.Fprintf(os.Stderr, format, a...)
}
