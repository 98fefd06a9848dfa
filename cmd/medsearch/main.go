package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vitalio/medsearch/internal/api"
	"github.com/vitalio/medsearch/internal/chunker"
	"github.com/vitalio/medsearch/internal/classifier"
	"github.com/vitalio/medsearch/internal/config"
	"github.com/vitalio/medsearch/internal/database/kafka"
	"github.com/vitalio/medsearch/internal/database/milvus"
	"github.com/vitalio/medsearch/internal/database/minio"
	"github.com/vitalio/medsearch/internal/database/mongo"
	"github.com/vitalio/medsearch/internal/database/mysql"
	"github.com/vitalio/medsearch/internal/database/redis"
	"github.com/vitalio/medsearch/internal/embedding"
	"github.com/vitalio/medsearch/internal/ingestion"
	"github.com/vitalio/medsearch/internal/progress"
	"github.com/vitalio/medsearch/internal/retrieval"
	"github.com/vitalio/medsearch/internal/storage"
	"github.com/vitalio/medsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("medsearch", "", "")
	appLogger.Info("Logger initialized")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Backing stores.
	db, err := mysql.New(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mysql.Close(db)

	documentStore := storage.NewDocumentStore(db)
	if err := documentStore.Migrate(); err != nil {
		appLogger.Fatal(err.Error())
	}
	chunkStore := storage.NewChunkStore(db)
	if err := chunkStore.EnsureFulltextIndex(); err != nil {
		appLogger.Fatal(err.Error())
	}
	tableStore := storage.NewTableStore(db)
	if err := tableStore.EnsureFulltextIndex(); err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("MySQL ready")

	milvusClient, err := milvus.New(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollections(ctx); err != nil {
		appLogger.Fatal(err.Error())
	}
	vectorStore := storage.NewVectorStore(milvusClient, appLogger)
	appLogger.Info("Milvus ready")

	mongoClient, err := mongo.New(ctx, &cfg.Databases.Mongo)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mongo.Close(context.Background(), mongoClient)
	jobStore := storage.NewMongoJobStore(
		mongoClient.Database(cfg.Databases.Mongo.Database), cfg.Databases.Mongo.Collection)
	appLogger.Info("MongoDB ready")

	redisClient, err := redis.New(ctx, &cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redisClient.Close()
	guard := storage.NewDupGuard(redisClient)
	appLogger.Info("Redis ready")

	minioClient, err := minio.New(ctx, &cfg.Databases.MinIO)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	objectStore := storage.NewObjectStore(minioClient, cfg.Databases.MinIO.Bucket)
	appLogger.Info("MinIO ready")

	kafkaWriter := kafka.NewWriter(&cfg.Databases.Kafka)
	defer kafkaWriter.Close()
	notifier := progress.NewMultiNotifier(
		progress.NewKafkaNotifier(kafkaWriter, appLogger),
		progress.NewCacheNotifier(guard, appLogger),
	)
	appLogger.Info("Kafka writer ready")

	// Domain components.
	model, err := embedding.NewModel(cfg.Embedding)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	batchEmbedder := embedding.NewBatchClient(model, cfg.Embedding)

	splitter, err := chunker.NewSplitter(cfg.Chunker)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	tableClassifier := classifier.New()
	tracker := progress.NewTracker(notifier, appLogger)

	pipeline := ingestion.NewPipeline(ingestion.PipelineDeps{
		Objects:    objectStore,
		Documents:  documentStore,
		Chunks:     chunkStore,
		Tables:     tableStore,
		Vectors:    vectorStore,
		Guard:      guard,
		Jobs:       jobStore,
		Embedder:   batchEmbedder,
		Splitter:   splitter,
		Classifier: tableClassifier,
		Tracker:    tracker,
		Log:        appLogger,
	})

	ingestService, err := ingestion.NewService(pipeline, tracker, cfg.Ingestion, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer ingestService.Release()

	searchAdapter := storage.NewSearchAdapter(vectorStore, chunkStore, tableStore, appLogger)
	engine := retrieval.NewEngine(batchEmbedder, searchAdapter, searchAdapter, cfg.Retrieval, appLogger)
	appLogger.Info("Dependencies injected")

	// HTTP transport.
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	apiHandler := api.NewAPI(api.Deps{
		Documents: documentStore,
		Objects:   objectStore,
		Vectors:   vectorStore,
		Jobs:      jobStore,
		Guard:     guard,
		Service:   ingestService,
		Engine:    engine,
		Logger:    appLogger,
	})
	api.RegisterRoutes(router, apiHandler, cfg.Auth.JwtSecret)

	port := cfg.App.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	appLogger.Info("Starting server on " + addr)
	if err := router.Run(addr); err != nil {
		appLogger.Fatal(err.Error())
	}
}
