package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vk-comments-exporter/internal/api"
	"vk-comments-exporter/internal/comments"
	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/store"
	"vk-comments-exporter/internal/vk"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	videoURL   string
	ownerID    string
	videoID    string
	out        string
	format     string
	delimiter  string
	token      string
	apiMode    bool
	apiAddr    string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("vk-comments", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", ".", "directory with config.yaml and .env")
	fs.StringVar(&o.videoURL, "url", "", "video URL containing video<owner>_<id>")
	fs.StringVar(&o.ownerID, "owner_id", "", "video owner id (negative for communities)")
	fs.StringVar(&o.ownerID, "owner-id", "", "alias of -owner_id")
	fs.StringVar(&o.videoID, "video_id", "", "video id")
	fs.StringVar(&o.videoID, "video-id", "", "alias of -video_id")
	fs.StringVar(&o.out, "out", "vk-video-comments.json", "output file")
	fs.StringVar(&o.format, "format", "", "json, csv or xlsx (default from -out extension)")
	fs.StringVar(&o.delimiter, "delimiter", "", "CSV delimiter (default CSV_DELIMITER)")
	fs.StringVar(&o.token, "token", "", "access token (default VK_TOKEN)")
	fs.BoolVar(&o.apiMode, "api", false, "start the HTTP service")
	fs.StringVar(&o.apiAddr, "addr", "", "HTTP service address (default API_ADDR)")
	err := fs.Parse(args)
	return o, err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := config.LoadConfig(o.configPath); err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger.InitFromConfig()

	if o.apiMode {
		return serve(ctx, o, stderr)
	}

	if err := export(ctx, o, stdout); err != nil {
		logger.Error("export failed", "err", err, "error_kind", crawler.KindOf(err), "code", crawler.CodeOf(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if vk.IsAuthFailure(err) {
			fmt.Fprintln(stderr, "The access token was rejected. Obtain a new one and update VK_TOKEN.")
		}
		return 1
	}
	return 0
}

// resolveIDs takes ids from -url first; explicit -owner_id/-video_id win.
func resolveIDs(o options) (int64, int64, error) {
	var owner, video int64
	var haveOwner, haveVideo bool
	if u := strings.TrimSpace(o.videoURL); u != "" {
		ow, vi, err := vk.ParseVideoURL(u)
		if err != nil {
			return 0, 0, crawler.NewInvalidInputError("%v", err)
		}
		owner, video, haveOwner, haveVideo = ow, vi, true, true
	}
	if s := strings.TrimSpace(o.ownerID); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, crawler.NewInvalidInputError("invalid -owner_id %q", s)
		}
		owner, haveOwner = v, true
	}
	if s := strings.TrimSpace(o.videoID); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, crawler.NewInvalidInputError("invalid -video_id %q", s)
		}
		video, haveVideo = v, true
	}
	if !haveOwner || !haveVideo {
		return 0, 0, crawler.NewInvalidInputError("pass -url or both -owner_id and -video_id")
	}
	return owner, video, nil
}

func outputFormat(o options) string {
	if f := strings.ToLower(strings.TrimSpace(o.format)); f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(o.out)) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	default:
		return "json"
	}
}

func export(ctx context.Context, o options, stdout io.Writer) error {
	token := strings.TrimSpace(o.token)
	if token == "" {
		token = strings.TrimSpace(config.AppConfig.VKToken)
	}
	if token == "" {
		return crawler.NewCredentialError("no access token: set VK_TOKEN or pass -token")
	}
	ownerID, videoID, err := resolveIDs(o)
	if err != nil {
		return err
	}
	if o.delimiter != "" {
		config.AppConfig.CSVDelimiter = o.delimiter
	}
	st, err := store.GetStore(outputFormat(o))
	if err != nil {
		return crawler.NewInvalidInputError("%v", err)
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("store init: %w", err)
	}

	logger.Info("fetching comments", "owner_id", ownerID, "video_id", videoID)
	agg := comments.NewAggregator(vk.NewClient())
	res, err := agg.Aggregate(ctx, token, ownerID, videoID)
	if err != nil {
		return err
	}

	if err := store.WriteFile(o.out, func(w io.Writer) error { return st.Write(w, res) }); err != nil {
		return fmt.Errorf("write %s: %w", o.out, err)
	}
	if err := store.ArchiveResult(ctx, res); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	fmt.Fprintf(stdout, "Saved %d top-level comments (%d total) to %s\n", res.TotalTopLevel, comments.Count(res.Comments), o.out)
	return nil
}

func serve(ctx context.Context, o options, stderr io.Writer) int {
	addr := strings.TrimSpace(o.apiAddr)
	if addr == "" {
		addr = config.AppConfig.APIAddr
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("store init failed", "err", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	srv := api.NewServer(nil, nil)
	defer srv.Close()
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting api server", "addr", addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "err", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Error("api server shutdown failed", "err", err)
			return 1
		}
		logger.Info("api server stopped")
		return 0
	}
}
