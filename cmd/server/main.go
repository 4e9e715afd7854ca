package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/socialpin/pin"
	"github.com/socialpin/pin/persistent"
	"github.com/socialpin/pin/pgdb"
	"github.com/socialpin/pin/redisq"
	"github.com/socialpin/pin/scraper"
	"github.com/socialpin/pin/transport/rest"
	"github.com/socialpin/pin/worker"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
)

func main() {
	flag.Parse()
	debug := os.Getenv("DEBUG") == "true"
	setupLogger(debug)
	logrus.Infoln("Starting scrape worker.")

	cfg := configFromEnv()

	bdb, err := buntdb.Open(cfg.buntdbPath)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open buntdb.")
	}
	defer bdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrus.Infoln("Opening database.")
	db := pgdb.Open(ctx, cfg.pgDsn)
	defer db.Close()
	if err := persistent.CreateSchema(ctx, db); err != nil {
		logrus.WithError(err).Fatalln("Could not create db schema.")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Fatalln("Could not ping redis.")
	}

	w, err := createWorker(cfg, bdb, db, rdb)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create worker.")
	}

	consumer := redisq.Consumer{
		Redis:   rdb,
		Worker:  w,
		Workers: cfg.workers,
	}
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx)
	}()

	logrus.Infoln("Starting listening... To shut down use ^C")
	shutdown := listenAndServe(db, rdb, debug)

	awaitInterruption()

	logrus.Infoln("Shutting down...")
	cancel()
	<-consumerDone
	if err := shutdown(); err != nil {
		logrus.WithError(err).Warningln("Fiber shutdown failed.")
	}
	logrus.Exit(0)
}

func createWorker(cfg config, bdb *buntdb.DB, db *bun.DB, rdb *redis.Client) (*worker.Worker, error) {
	sessions := &persistent.SessionService{Buntdb: bdb}
	twitter, err := scraper.NewTwitter(scraper.TwitterOptions{
		Sessions: sessions,
		Credentials: scraper.Credentials{
			Username: cfg.twitterUsername,
			Password: cfg.twitterPassword,
		},
		Timeout: cfg.httpTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &worker.Worker{
		Scrapers:   scraper.Registry{pin.SiteTwitter: twitter},
		Profiles:   &persistent.ProfileService{DB: db},
		Dispatcher: &redisq.Dispatcher{Redis: rdb},
		Publisher:  &redisq.Publisher{Redis: rdb},
		Downloader: resty.New().SetTimeout(cfg.httpTimeout),
	}, nil
}

func listenAndServe(db *bun.DB, rdb *redis.Client, debug bool) func() error {
	profileStore := &persistent.ProfileService{DB: db}
	dispatcher := &redisq.Dispatcher{Redis: rdb}

	profileController := rest.ProfileController{
		Profiles:   profileStore,
		Dispatcher: dispatcher,
	}
	fileController := rest.FileController{Profiles: profileStore}

	server := fiber.New()
	server.Use(rest.LogHandler())

	api := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: rest.ErrorHandler,
	})
	profileController.InstallTo(api)
	fileController.InstallTo(api)
	server.Mount("/api/", api)

	server.Use(rest.NotFoundHandler)

	var addr string
	if debug {
		addr = "127.0.0.1:8000"
	} else {
		addr = ":8000"
	}
	go func() {
		if err := server.Listen(addr); err != nil {
			logrus.WithError(err).Fatalln("Could not listen.")
		}
	}()

	return server.Shutdown
}

type config struct {
	pgDsn           string
	redisAddr       string
	buntdbPath      string
	twitterUsername string
	twitterPassword string
	httpTimeout     time.Duration
	workers         int
}

func configFromEnv() config {
	requireEnv := func(key string) string {
		value := os.Getenv(key)
		if value == "" {
			logrus.Fatalln(key + " not set!")
		}
		return value
	}

	httpTimeout := 30 * time.Second
	if raw := os.Getenv("HTTP_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logrus.WithError(err).Fatalln("Invalid HTTP_TIMEOUT.")
		}
		httpTimeout = parsed
	}

	buntdbPath := os.Getenv("BUNTDB_PATH")
	if buntdbPath == "" {
		buntdbPath = "kv.db"
	}

	return config{
		pgDsn:           requireEnv("POSTGRES_DSN"),
		redisAddr:       requireEnv("REDIS_ADDR"),
		buntdbPath:      buntdbPath,
		twitterUsername: requireEnv("TWITTER_USERNAME"),
		twitterPassword: requireEnv("TWITTER_PASSWORD"),
		httpTimeout:     httpTimeout,
		workers:         4,
	}
}

func setupLogger(verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func awaitInterruption() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}
