package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/teachbot/conversation-service/internal/auth"
	"github.com/teachbot/conversation-service/internal/server"
	storage "github.com/teachbot/conversation-service/internal/storages"
	usecase "github.com/teachbot/conversation-service/internal/usecases"
)

func initLogger(level string) *logrus.Logger {

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		PrettyPrint: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.
			WithField("log_level", level).
			Warning("specified invalid log level")
	} else {
		logger.SetLevel(logLevel)
		logger.
			WithField("log_level", level).
			Infof("specified %s log level", logLevel.String())
	}

	return logger
}

func initDB(dsn string, logger *logrus.Logger) *sqlx.DB {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		logger.Fatalf("can't connect to database: %s", err.Error())
	}

	err = db.Ping()

	if err != nil {
		logger.Fatalf("database ping failed: %s", err.Error())
	}

	logger.Info("successfully connected to database")
	return db
}

func initProducer(logger *logrus.Logger) sarama.SyncProducer {
	brokers := viper.GetString("KAFKA_BROKERS")
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS environment variable must be defined")
	}

	addrs := strings.Split(brokers, ",")
	config := sarama.NewConfig()
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 10 * time.Second
	config.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(addrs, config)

	if err != nil {
		logger.WithError(err).Fatal("can't create producer")
	}

	return producer
}

func main() {
	viper.AutomaticEnv()
	ctx := context.Background()
	defer ctx.Done()

	var host string
	var port int
	var logLevel string

	flag.IntVar(&port, "port", 80, "port on which server will be started")
	flag.StringVar(&host, "host", "0.0.0.0", "host on which server will be started")
	flag.StringVar(&logLevel, "log", "info", "log level")

	flag.Parse()

	logger := initLogger(logLevel)

	db := initDB(viper.GetString("DB_DSN"), logger)
	defer func(db *sqlx.DB) {
		err := db.Close()
		if err != nil {
			logger.Fatalf("during db connection close an error occurred: %s", err.Error())
		}
	}(db)

	producer := initProducer(logger)

	store := storage.NewRegistry(db, producer, &storage.UpdatesStoreConfig{
		UpdatesTopic: viper.GetString("UPDATES_TOPIC"),
	})

	publicChatId := viper.GetString("PUBLIC_CHAT_ID")
	if publicChatId == "" {
		logger.Warning("PUBLIC_CHAT_ID is not set, no chat gets the public exemption")
	}

	guard := usecase.NewAccessGuard(publicChatId)
	resolver := usecase.NewChatResolver(store)
	conversations := usecase.NewConversationsUsecase(store, guard, resolver, viper.GetUint64("MESSAGES_PAGE_SIZE"))

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET environment variable must be defined")
	}
	verifier := auth.NewVerifier(secret)

	validate := validator.New()
	srv := server.NewConversationServer(conversations, verifier, validate, logger)

	address := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: srv.Router(),
	}

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func(ctx context.Context) {
		select {
		case sig := <-osSignal:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
			logger.Infof("%s caught. Gracefully shutdown", sig.String())
		case <-ctx.Done():
			return
		}
	}(ctx)

	logger.Infof("start listening on %s", address)
	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http serving error: %s", err.Error())
	}
}
