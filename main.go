package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Zelak312/blockmotion/blockmatch"
	"github.com/Zelak312/blockmotion/views"
)

type Job struct {
	ID         int64  `json:"id"`
	Path       string `json:"path" binding:"required"`
	OutputPath string `json:"outPath"`
	EstimationOptions
}

type FailedJob struct {
	ID           int64  `json:"id"`
	FFmpegOutput string `json:"ffmpegOutput"`
	Error        string `json:"error"`
	Job          Job    `json:"job"`
}

func main() {
	// cli arguments
	configPath := flag.String("config_path", "./config.yml", "Path to the config yml file")
	sourcePath := flag.String("source", "", "Image to estimate motion for, runs a single estimation when set")
	targetPath := flag.String("target", "", "Reference image the source blocks are searched in")
	blockSize := flag.Int("block", 8, "Block size in pixels (4, 8 or 16)")
	windowSize := flag.Int("window", 16, "Search window size in pixels")
	levels := flag.Int("levels", 1, "Pyramid levels (1 to 4)")
	metric := flag.String("metric", "mse", "Block distortion metric (mse or sad)")
	flag.Parse()

	if *sourcePath != "" || *targetPath != "" {
		err := runPairCommand(*sourcePath, *targetPath, *metric, EstimationOptions{
			BlockSize:          *blockSize,
			WindowSize:         *windowSize,
			Levels:             *levels,
			InterFrameDistance: 1,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPairCommand(sourcePath string, targetPath string, metricName string, options EstimationOptions) error {
	if sourcePath == "" || targetPath == "" {
		return errors.New("both -source and -target are required")
	}

	metric, err := blockmatch.MetricByName(metricName)
	if err != nil {
		return err
	}

	matcher := blockmatch.NewMatcher(blockmatch.WithMetric(metric))
	return RunPair(os.Stdout, sourcePath, targetPath, matcher, options)
}

func run(configPath string) error {
	config, err := GetConfig(configPath)
	if err != nil {
		return err
	}

	if err := InitLogFile(config.LogPath, config.LogLevel); err != nil {
		return err
	}
	defer CloseLogFile()

	log, err := CreateLogger("main")
	if err != nil {
		return err
	}

	log.WithFields(StructFields(config)).Debug("Config loaded")

	sqlite, err := NewSqlite(config.DatabasePath)
	if err != nil {
		return err
	}
	defer sqlite.Close()

	log.Info("Running migrations")
	if err := sqlite.RunMigrations(); err != nil {
		return err
	}

	jobs, err := sqlite.GetJobs()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubLogger, err := CreateLogger("ws")
	if err != nil {
		return err
	}

	hub := NewHub(hubLogger)
	go hub.Run(ctx)

	queue := NewQueue(jobs, hub)
	log.WithField("jobs", len(jobs)).Info("Queue loaded")

	metric, err := blockmatch.MetricByName(config.Metric)
	if err != nil {
		return err
	}

	matcher := blockmatch.NewMatcher(
		blockmatch.WithMetric(metric),
		blockmatch.WithWorkers(config.MatchWorkers),
	)

	var waitGroup sync.WaitGroup
	pool, err := NewPoolWorker(ctx, queue, sqlite, &config, hub, matcher, &waitGroup)
	if err != nil {
		return err
	}

	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		pool.RunDispatcher()
	}()

	httpLogger, err := CreateLogger("http")
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(httpLogger))
	r.HTMLRender = &views.HTMLTemplRenderer{}

	h := &handlers{
		logger: httpLogger,
		config: &config,
		sqlite: sqlite,
		queue:  queue,
		pool:   pool,
		hub:    hub,
	}
	h.register(r)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.BindAddress, config.Port),
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("address", server.Addr).Info("Listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped: ", err)
		}
		stop()
	}

	log.Info("Shutting down, waiting for workers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logrus.Fields{"error": err}).Warn("Server shutdown")
	}

	waitGroup.Wait()
	log.Info("Bye")
	return nil
}
