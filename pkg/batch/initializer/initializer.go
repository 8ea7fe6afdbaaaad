package initializer

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	config "weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database"
	factory "weatheretl/pkg/batch/job/factory"
	"weatheretl/pkg/batch/job/joblauncher"
	jsl "weatheretl/pkg/batch/job/jsl"
	repository "weatheretl/pkg/batch/repository"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// AppMigrationsTable はアプリケーション側のマイグレーション履歴テーブルです。
const AppMigrationsTable = "schema_migrations"

type BatchInitializer struct {
	Config             *config.Config
	JSLDefinitionBytes []byte // JSL定義のバイトスライス
	// AppMigrations は "<dbtype>/*.sql" を含むアプリケーションのマイグレーションです。nil ならスキップします。
	AppMigrations fs.FS
	JobRepository repository.JobRepository
	JobFactory    *factory.JobFactory
	JobLauncher   joblauncher.JobLauncher
}

func NewBatchInitializer(cfg *config.Config) *BatchInitializer {
	return &BatchInitializer{
		Config: cfg,
	}
}

// Initialize はバッチアプリケーションの初期化処理を実行します。
// .env ファイルのロードは呼び出し元で行われている前提です。
//
// 戻り値の JobFactory にはまだコンポーネントが登録されていないので、
// Launch の前に呼び出し元で Registry() に登録してください。
func (bi *BatchInitializer) Initialize(ctx context.Context) (joblauncher.JobLauncher, *factory.JobFactory, error) {
	logger.Debugf("BatchInitializer.Initialize が呼び出されました。")

	// Step 1: 設定のロード
	cfg, err := config.NewBytesConfigLoader(bi.Config.EmbeddedConfig).Load()
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "設定のロードに失敗しました", err, false, false)
	}
	bi.Config = cfg

	// Step 2: ログ出力先 (ファイル + 標準出力) の設定
	if err := logger.Init(logger.Options{
		Level:  cfg.System.Logging.Level,
		File:   cfg.System.Logging.File,
		Stdout: cfg.System.Logging.Stdout,
	}); err != nil {
		return nil, nil, exception.NewBatchError("initializer", "ロガーの初期化に失敗しました", err, false, false)
	}
	logger.Infof("ロギングレベルを '%s' に設定しました。", cfg.System.Logging.Level)

	// Step 3: マイグレーション (フレームワーク → アプリケーション)
	dbType := strings.ToLower(cfg.Database.Type)
	if err := database.RunMigrations(cfg.Database, repository.Migrations, path.Join("migrations", dbType), repository.MigrationsTable); err != nil {
		return nil, nil, exception.NewBatchError("initializer", "バッチフレームワークのマイグレーションに失敗しました", err, false, false)
	}
	if bi.AppMigrations != nil {
		if err := database.RunMigrations(cfg.Database, bi.AppMigrations, dbType, AppMigrationsTable); err != nil {
			return nil, nil, exception.NewBatchError("initializer", "アプリケーションのマイグレーションに失敗しました", err, false, false)
		}
	}

	// Step 4: Job Repository の生成
	jobRepository, err := repository.NewJobRepository(ctx, *cfg)
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "Job Repository の生成に失敗しました", err, false, false)
	}
	bi.JobRepository = jobRepository
	logger.Infof("Job Repository を生成しました。")

	// Step 5: JSL 定義のロードと JobFactory への登録
	jobDef, err := jsl.LoadJSLDefinitionFromBytes(bi.JSLDefinitionBytes)
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "JSL 定義のロードに失敗しました", err, false, false)
	}
	jobFactory := factory.NewJobFactory(cfg, jobRepository)
	if err := jobFactory.RegisterJobDefinition(jobDef); err != nil {
		return nil, nil, err
	}
	bi.JobFactory = jobFactory
	logger.Infof("JSL 定義 '%s' のロードが完了しました。", jobDef.ID)

	// Step 6: JobLauncher の生成
	bi.JobLauncher = joblauncher.NewSimpleJobLauncher(jobRepository, jobFactory)
	logger.Debugf("SimpleJobLauncher を生成しました。")

	return bi.JobLauncher, bi.JobFactory, nil
}

// Close は BatchInitializer が保持するリソースを解放します。
func (bi *BatchInitializer) Close() error {
	var errs []error
	if bi.JobRepository != nil {
		if closeErr := bi.JobRepository.Close(); closeErr != nil {
			logger.Errorf("Job Repository のクローズに失敗しました: %v", closeErr)
			errs = append(errs, fmt.Errorf("Job Repository クローズエラー: %w", closeErr))
		} else {
			logger.Infof("Job Repository を正常にクローズしました。")
		}
	}
	if err := logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ログファイルクローズエラー: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("複数のクローズエラーが発生しました: %v", errs)
	}
	return nil
}
