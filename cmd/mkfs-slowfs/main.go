// Command mkfs-slowfs formats a new slowfs image: the host-side
// external collaborator of spec.md §6 that "constructs a SuperBlock in
// format mode and calls sync_fs once".
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	backendfile "github.com/yannickperrenet/slowfs/backend/file"
	"github.com/yannickperrenet/slowfs/disk"
	"github.com/yannickperrenet/slowfs/internal/config"
	"github.com/yannickperrenet/slowfs/sector"
	"github.com/yannickperrenet/slowfs/super"
)

var (
	cfgFile  string
	diskSize int64
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkfs-slowfs IMAGE",
		Short: "Format a new slowfs disk image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadCfgAndLog()
			if err != nil {
				return err
			}
			return formatOne(args[0], cfg, log)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "path to a config file")
	cmd.Flags().Int64Var(&diskSize, "size", 0, "image size in bytes (overrides config disk_size)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "logrus level (overrides config log_level)")

	batch := &cobra.Command{
		Use:   "batch IMAGE...",
		Short: "Format several independent images concurrently",
		Long: `Each image is its own mount with no shared state, so formatting them
is safe to parallelize even though a single mount's operations are not
(spec.md §5's single-threaded invariant only binds within one mount).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadCfgAndLog()
			if err != nil {
				return err
			}
			return formatBatch(args, cfg, log)
		},
	}
	batch.Flags().StringVar(&cfgFile, "config", "", "path to a config file")
	batch.Flags().Int64Var(&diskSize, "size", 0, "image size in bytes (overrides config disk_size)")
	batch.Flags().StringVar(&logLevel, "log-level", "", "logrus level (overrides config log_level)")
	cmd.AddCommand(batch)

	return cmd
}

func loadCfgAndLog() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if diskSize > 0 {
		cfg.DiskSize = diskSize
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return cfg, log, nil
}

func formatOne(pathname string, cfg config.Config, log logrus.FieldLogger) error {
	numSectors := uint32(cfg.DiskSize / sector.Size)

	storage, err := backendfile.Create(pathname, int64(numSectors)*sector.Size)
	if err != nil {
		return fmt.Errorf("mkfs-slowfs: %w", err)
	}
	d := disk.Open(storage, numSectors)
	defer d.Close()

	sb, err := super.Format(d, log)
	if err != nil {
		return fmt.Errorf("mkfs-slowfs: %w", err)
	}
	if err := sb.SyncFS(); err != nil {
		return fmt.Errorf("mkfs-slowfs: %w", err)
	}

	log.WithFields(logrus.Fields{
		"image":       pathname,
		"size_bytes":  int64(numSectors) * sector.Size,
		"num_sectors": numSectors,
	}).Info("formatted image")
	return nil
}

func formatBatch(paths []string, cfg config.Config, log logrus.FieldLogger) error {
	var g errgroup.Group
	for _, p := range paths {
		p := p
		g.Go(func() error { return formatOne(p, cfg, log) })
	}
	return g.Wait()
}
