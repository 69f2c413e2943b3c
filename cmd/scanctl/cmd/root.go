package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/otcheredev/dicom-study-loader/internal/cache"
	"github.com/otcheredev/dicom-study-loader/internal/config"
	"github.com/otcheredev/dicom-study-loader/internal/extractor"
	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/parser"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/services"
	"github.com/otcheredev/dicom-study-loader/internal/source"
	"github.com/otcheredev/dicom-study-loader/internal/storage"
	"github.com/otcheredev/dicom-study-loader/pkg/logger"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scanctl",
		Short:         "load and organize DICOM studies from local folders",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logger.Init(strings.ToLower(logLevel), "console", "")
			// keep stdout for command output
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewLoadCmd(ctx),
		NewRecentsCmd(ctx),
		NewCacheCmd(ctx),
	)

	defaults, err := config.Load()
	if err != nil {
		defaults = &config.Config{Storage: config.StorageConfig{Backend: storage.BackendBolt, Path: "data/loader.db"}}
	}
	pf := cmd.PersistentFlags()
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("storage-backend", defaults.Storage.Backend, "Key-value backend (memory|bolt|sqlite)")
	pf.String("storage-path", defaults.Storage.Path, "Key-value store file")
	pf.StringSlice("extra-tags", defaults.Loader.ExtraTags, "Extra DICOM keywords to extract into customTags")
	return cmd
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
	return cmd
}

// env is the loader wiring shared by subcommands
type env struct {
	store  storage.Store
	loader *services.StudyLoader
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv opens the configured store and builds a loader with the persisted
// study cache, directory handles and recents on top of it
func openEnv(cmd *cobra.Command) (*env, error) {
	backend, _ := cmd.Flags().GetString("storage-backend")
	path, _ := cmd.Flags().GetString("storage-path")
	extraTags, _ := cmd.Flags().GetStringSlice("extra-tags")

	st, err := storage.Open(backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	registry, err := imaging.NewMemoryRegistry(1024)
	if err != nil {
		st.Close()
		return nil, err
	}
	ex, err := extractor.New(extraTags...)
	if err != nil {
		st.Close()
		return nil, err
	}

	loader := services.NewStudyLoader(parser.New(ex, registry),
		services.WithStudyCache(cache.NewStudyCache(cache.NewStoreCache(st))),
		services.WithHandleStore(source.NewHandleStore(st, nil)),
		services.WithRecents(recents.NewManager(st)),
	)
	return &env{store: st, loader: loader}, nil
}
