package app

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	godotenv "github.com/joho/godotenv"

	config "weatheretl/pkg/batch/config"
	initializer "weatheretl/pkg/batch/initializer"
	"weatheretl/pkg/batch/job/component"
	core "weatheretl/pkg/batch/job/core"
	joblauncher "weatheretl/pkg/batch/job/joblauncher"
	joblistener "weatheretl/pkg/batch/job/listener"
	"weatheretl/pkg/batch/repository"
	steplistener "weatheretl/pkg/batch/step/listener"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
	"weatheretl/weather/fetcher"
	appRepo "weatheretl/weather/repository"
	weatherprocessor "weatheretl/weather/step/processor"
	weatherreader "weatheretl/weather/step/reader"
	appTasklet "weatheretl/weather/step/tasklet"
	weatherwriter "weatheretl/weather/step/writer"
)

// registerApplicationComponents はアプリケーション固有のコンポーネントとリスナーを登録します。
func registerApplicationComponents(registry *component.Registry) {
	registry.RegisterComponent("cityWeatherReader", func(cfg *config.Config, repo repository.JobRepository, properties map[string]string) (any, error) {
		fetcherCfg := weather_config.NewFetcherConfig(cfg)
		// JSL properties があれば、config の値を上書きする
		if endpoint, ok := properties["apiEndpoint"]; ok && endpoint != "" {
			fetcherCfg.APIEndpoint = endpoint
		}
		readerCfg := weather_config.CityReaderConfig{Cities: cfg.Weather.TargetCities()}
		return weatherreader.NewCityWeatherReader(readerCfg, fetcher.NewFetcher(fetcherCfg, nil)), nil
	})
	registry.RegisterComponent("rawObservationProcessor", func(cfg *config.Config, repo repository.JobRepository, properties map[string]string) (any, error) {
		return weatherprocessor.NewRawObservationProcessor(), nil
	})
	registry.RegisterComponent("rawObservationWriter", func(cfg *config.Config, repo repository.JobRepository, properties map[string]string) (any, error) {
		weatherRepo, err := appRepo.NewSQLWeatherRepository(repo.GetDBConnection().Dialect())
		if err != nil {
			return nil, err
		}
		loc, err := weather_config.LoadLocation(cfg)
		if err != nil {
			return nil, err
		}
		return weatherwriter.NewRawObservationWriter(weatherRepo, weather_config.RawWriterConfig{Location: loc}, time.Now), nil
	})
	registry.RegisterComponent("dailyAggregateTasklet", func(cfg *config.Config, repo repository.JobRepository, properties map[string]string) (any, error) {
		conn := repo.GetDBConnection()
		weatherRepo, err := appRepo.NewSQLWeatherRepository(conn.Dialect())
		if err != nil {
			return nil, err
		}
		loc, err := weather_config.LoadLocation(cfg)
		if err != nil {
			return nil, err
		}
		aggCfg := weather_config.AggregatorConfig{Location: loc, SkipScope: cfg.Weather.Aggregation.SkipScope}
		if scope, ok := properties["skipScope"]; ok && scope != "" {
			aggCfg.SkipScope = scope
		}
		return appTasklet.NewDailyAggregateTasklet(weatherRepo, conn, aggCfg, time.Now), nil
	})

	registry.RegisterStepListener("loggingStepListener", func(cfg *config.Config) (core.StepExecutionListener, error) {
		return steplistener.NewLoggingStepListener(), nil
	})
	registry.RegisterSkipListener("loggingSkipListener", func(cfg *config.Config) (core.SkipListener, error) {
		return steplistener.NewLoggingSkipListener(), nil
	})
	registry.RegisterJobListener("loggingJobListener", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return joblistener.NewLoggingJobListener(), nil
	})

	logger.Debugf("全てのアプリケーションコンポーネントビルダーを登録しました。")
}

// setupApplication はアプリケーションの初期化処理を実行し、必要なコンポーネントを返します。
func setupApplication(ctx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte, migrations fs.FS) (*initializer.BatchInitializer, joblauncher.JobLauncher, error) {
	// .env ファイルのロード
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env ファイル '%s' のロードに失敗しました (本番環境では環境変数を使用): %v", envFilePath, err)
		} else {
			logger.Infof(".env ファイル '%s' をロードしました。", envFilePath)
		}
	} else {
		logger.Debugf(".env ファイルのパスが指定されていないため、ロードをスキップします。")
	}

	batchInitializer := initializer.NewBatchInitializer(&config.Config{EmbeddedConfig: embeddedConfig})
	batchInitializer.JSLDefinitionBytes = embeddedJSL
	batchInitializer.AppMigrations = migrations

	jobLauncher, jobFactory, initErr := batchInitializer.Initialize(ctx)
	if initErr != nil {
		// 途中まで開いたリソースを閉じる
		_ = batchInitializer.Close()
		return nil, nil, exception.NewBatchError("app", "バッチアプリケーションの初期化に失敗しました", initErr, false, false)
	}
	logger.Infof("バッチアプリケーションの初期化が完了しました。")

	registerApplicationComponents(jobFactory.Registry())

	return batchInitializer, jobLauncher, nil
}

// executeJob は指定されたジョブを実行し、その結果に基づいて終了コードを返します。
func executeJob(ctx context.Context, jobLauncher joblauncher.JobLauncher, appConfig *config.Config) int {
	jobName := appConfig.Batch.JobName
	logger.Infof("実行する Job: '%s'", jobName)

	cities := appConfig.Weather.TargetCities()
	jobParams := core.NewJobParameters()
	jobParams.Put("cities", strings.Join(cities, ","))
	jobParams.Put("run.at", time.Now().Format(time.RFC3339))

	jobExecution, startErr := jobLauncher.Launch(ctx, jobName, jobParams)
	if startErr == nil && jobExecution == nil {
		logger.Errorf("JobLauncher.Launch がエラーなしで nil の JobExecution を返しました。")
		return 1
	}

	exitCode := handleApplicationError(startErr, jobExecution, jobName)
	if exitCode == 0 {
		logger.Infof("ETL completed for %s", strings.Join(cities, ", "))
	}
	return exitCode
}

// RunApplication はアプリケーションのメインロジックを実行し、プロセスの終了コードを返します。
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte, migrations fs.FS) int {
	batchInitializer, jobLauncher, initErr := setupApplication(ctx, envFilePath, embeddedConfig, embeddedJSL, migrations)
	if initErr != nil {
		logger.Errorf("%v", initErr)
		return 1
	}

	// 初期化完了後、リソースのクローズ処理を defer で登録
	defer func() {
		if closeErr := batchInitializer.Close(); closeErr != nil {
			logger.Errorf("バッチアプリケーションのリソースクローズ中にエラーが発生しました: %v", closeErr)
		}
	}()

	return executeJob(ctx, jobLauncher, batchInitializer.Config)
}

// handleApplicationError はアプリケーションのエラーを処理し、適切な終了コードを返します。
func handleApplicationError(err error, jobExecution *core.JobExecution, jobName string) int {
	hasError := false

	if err != nil {
		hasError = true
		if jobExecution != nil {
			logger.Errorf("Job '%s' (Execution ID: %s) の実行中にエラーが発生しました: %v", jobName, jobExecution.ID, err)
		} else {
			logger.Errorf("Job '%s' の起動処理中にエラーが発生しました: %v", jobName, err)
		}

		var be *exception.BatchError
		if errors.As(err, &be) && be.StackTrace != "" {
			logger.Debugf("BatchError StackTrace:\n%s", be.StackTrace)
		}
	}

	if jobExecution != nil && (jobExecution.Status == core.BatchStatusFailed || jobExecution.Status == core.BatchStatusAbandoned) {
		hasError = true
		logger.Errorf("Job '%s' は失敗しました。詳細は JobExecution (ID: %s) およびログを確認してください。", jobExecution.JobName, jobExecution.ID)
	}

	if jobExecution != nil {
		for i, f := range jobExecution.Failures {
			logger.Errorf("  - 失敗 %d: %v", i+1, f)
		}
	}

	if hasError {
		return 1
	}
	return 0
}
