// Command slowfs-shell drives a slowfs image the way
// examples/high_level.py originally did: format, mount, run a handful
// of file/directory operations, unmount, remount, and verify
// persistence. Pass --metrics-addr to additionally serve Prometheus
// metrics while it runs.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	backendfile "github.com/yannickperrenet/slowfs/backend/file"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/internal/config"
	"github.com/yannickperrenet/slowfs/internal/metrics"
	"github.com/yannickperrenet/slowfs/process"
	"github.com/yannickperrenet/slowfs/sector"
	"github.com/yannickperrenet/slowfs/super"
	"github.com/yannickperrenet/slowfs/vfs"
)

var (
	cfgFile     string
	metricsAddr string
	imagePath   string
)

func main() {
	cmd := &cobra.Command{
		Use:   "slowfs-shell",
		Short: "Run a scripted sequence of slowfs operations against a fresh image",
		RunE:  run,
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9100)")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the disk image (default slowfs.raw)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if imagePath == "" {
		imagePath = "slowfs.raw"
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.WithField("addr", metricsAddr).Info("serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	numSectors := uint32(cfg.DiskSize / sector.Size)
	storage, err := backendfile.Create(imagePath, int64(numSectors)*sector.Size)
	if err != nil {
		return fmt.Errorf("slowfs-shell: %w", err)
	}
	d := disk.Open(storage, numSectors)

	sb, err := super.Format(d, log)
	if err != nil {
		return fmt.Errorf("slowfs-shell: %w", err)
	}
	if err := sb.SyncFS(); err != nil {
		return fmt.Errorf("slowfs-shell: %w", err)
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("slowfs-shell: %w", err)
	}

	v := vfs.New(log, rec)
	if err := runScenario(v, imagePath, cfg, log); err != nil {
		return fmt.Errorf("slowfs-shell: %w", err)
	}
	log.Info("scenario completed successfully")
	return nil
}

func runScenario(v *vfs.VFS, imagePath string, cfg config.Config, log logrus.FieldLogger) error {
	storage, err := backendfile.Open(imagePath, false)
	if err != nil {
		return err
	}
	numSectors := uint32(cfg.DiskSize / sector.Size)
	d := disk.Open(storage, numSectors)

	if err := v.Mount("/mountpoint", d); err != nil {
		return err
	}

	proc := process.New(cfg.NumOpenFiles)

	fd, err := v.Open("/mountpoint/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	if err != nil {
		return err
	}
	if _, err := v.Write(fd, []byte("Hello world"), proc); err != nil {
		return err
	}
	if _, err := v.Seek(fd, 0, proc); err != nil {
		return err
	}
	if err := v.Close(fd, proc); err != nil {
		return err
	}

	if err := v.Mkdir("/mountpoint/mydir", 0o755); err != nil {
		return err
	}
	fd, err = v.Open("/mountpoint/mydir/file", os.O_CREAT|os.O_RDWR, 0o644, proc)
	if err != nil {
		return err
	}
	if _, err := v.Write(fd, []byte("Im in a subdir"), proc); err != nil {
		return err
	}
	if err := v.Close(fd, proc); err != nil {
		return err
	}

	if _, err := v.Open("/mountpoint/not_a_subdir/file", os.O_CREAT|os.O_RDWR, 0o644, proc); err == nil {
		return fmt.Errorf("expected ENOENT opening a file under a missing directory")
	}

	if err := v.Umount("/mountpoint"); err != nil {
		return err
	}

	storage2, err := backendfile.Open(imagePath, false)
	if err != nil {
		return err
	}
	d2 := disk.Open(storage2, numSectors)
	if err := v.Mount("/my-mnt", d2); err != nil {
		return err
	}
	fd, err = v.Open("/my-mnt/mydir/file", os.O_RDONLY, 0, proc)
	if err != nil {
		return err
	}
	buf, err := v.Read(fd, 15, proc)
	if err != nil {
		return err
	}
	if string(buf) != "Im in a subdir" {
		return fmt.Errorf("persistence check failed: got %q", buf)
	}
	return v.Close(fd, proc)
}
