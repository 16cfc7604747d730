// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gorse-io/rating/cmd/version"
	"github.com/gorse-io/rating/common/log"
	"github.com/gorse-io/rating/config"
	"github.com/gorse-io/rating/dataset"
	"github.com/gorse-io/rating/logics"
	"github.com/gorse-io/rating/model/cf"
	"github.com/gorse-io/rating/server"
	"github.com/gorse-io/rating/storage/blob"
	"github.com/gorse-io/rating/storage/cache"
	"github.com/gorse-io/rating/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "rating",
	Short: "Rating prediction and top-N recommendation with biased matrix factorization.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			return nil
		}
		return cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
	},
}

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model on all ratings and save it to the blob store.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		shutdown, err := setupTracing(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer shutdown()
		trainSet, err := loadDataset(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		svd := cf.NewSVD(conf.Model.Params())
		fitConfig := cf.NewFitConfig().
			SetScale(conf.Data.Scale()).
			SetVerbose(conf.Model.Verbose)
		if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
			bar := progressbar.NewOptions(conf.Model.NEpochs,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Training"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish())
			fitConfig.OnEpoch = func(epoch int, rmse float64) {
				bar.Describe(fmt.Sprintf("Training (rmse %.4f)", rmse))
				_ = bar.Add(1)
			}
		}
		m, err := svd.Fit(ctx, trainSet, fitConfig)
		if err != nil {
			return errors.Trace(err)
		}
		store, err := blob.Open(conf.Blob)
		if err != nil {
			return errors.Trace(err)
		}
		if err = cf.Save(ctx, store, conf.Model.Name, m); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("model saved",
			zap.String("blob", conf.Blob.Type),
			zap.String("name", conf.Model.Name),
			zap.Float64("train_rmse", cf.RMSE(m, trainSet)))
		return nil
	},
}

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Cross validate model hyper-parameters, or evaluate them on a holdout set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		d, err := loadDataset(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		fitConfig := cf.NewFitConfig().
			SetScale(conf.Data.Scale()).
			SetVerbose(conf.Model.Verbose).
			SetJobs(conf.Evaluate.NumJobs)
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Fold", "RMSE", "MAE")
		if holdout, _ := cmd.Flags().GetFloat64("holdout"); holdout > 0 {
			score, err := cf.Holdout(ctx, cf.NewSVD(conf.Model.Params()), d, holdout, conf.Evaluate.RandomState, fitConfig)
			if err != nil {
				return errors.Trace(err)
			}
			if err = table.Append([]string{"Holdout", formatFloat(score.RMSE), formatFloat(score.MAE)}); err != nil {
				return errors.Trace(err)
			}
			return errors.Trace(table.Render())
		}
		scores, err := cf.CrossValidate(ctx, cf.NewSVD(conf.Model.Params()), d,
			conf.Evaluate.NumFolds, conf.Evaluate.RandomState, fitConfig)
		if err != nil {
			return errors.Trace(err)
		}
		for i, score := range scores {
			if err = table.Append([]string{strconv.Itoa(i + 1), formatFloat(score.RMSE), formatFloat(score.MAE)}); err != nil {
				return errors.Trace(err)
			}
		}
		mean := cf.MeanScore(scores)
		if err = table.Append([]string{"Mean", formatFloat(mean.RMSE), formatFloat(mean.MAE)}); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(table.Render())
	},
}

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Print top-N recommendations for a user.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		userId, _ := cmd.Flags().GetInt64("user")
		n, _ := cmd.Flags().GetInt("n")
		recommender, err := loadRecommender(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		predictions, err := recommender.Recommend(userId, lo.Ternary(n > 0, n, conf.Server.DefaultN))
		if err != nil {
			return errors.Trace(err)
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Rank", "Item", "Estimated Rating")
		for i, p := range predictions {
			if err = table.Append([]string{strconv.Itoa(i + 1), strconv.FormatInt(p.ItemId, 10), formatFloat(p.Score)}); err != nil {
				return errors.Trace(err)
			}
		}
		return errors.Trace(table.Render())
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP. SIGHUP reloads the model and ratings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		conf, err := loadConfig(cmd)
		if err != nil {
			return errors.Trace(err)
		}
		shutdown, err := setupTracing(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		defer shutdown()
		var cacheClient cache.Database
		if conf.Server.CacheSize > 0 || conf.Server.CacheStore != "" {
			if cacheClient, err = cache.Open(conf.Server.CacheStore, conf.Server.CacheSize, conf.Server.CacheTTL); err != nil {
				return errors.Trace(err)
			}
			defer cacheClient.Close()
		}
		s := server.NewRestServer(conf.Server, cacheClient)
		recommender, err := loadRecommender(ctx, conf)
		if err != nil {
			return errors.Trace(err)
		}
		if err = s.SetRecommender(ctx, recommender); err != nil {
			return errors.Trace(err)
		}
		go reload(ctx, s, conf)
		return errors.Trace(s.Serve(ctx))
	},
}

// reload swaps in a freshly loaded recommender on every SIGHUP. A failed reload keeps
// serving the current one.
func reload(ctx context.Context, s *server.RestServer, conf *config.Config) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Logger().Info("reload model and ratings")
			recommender, err := loadRecommender(ctx, conf)
			if err != nil {
				log.Logger().Error("failed to reload", zap.Error(err))
				continue
			}
			if err = s.SetRecommender(ctx, recommender); err != nil {
				log.Logger().Error("failed to purge cache", zap.Error(err))
			}
		}
	}
}

// setupTracing installs the global tracer provider. The returned function flushes pending spans.
func setupTracing(ctx context.Context, conf *config.Config) (func(), error) {
	provider, err := conf.Tracing.NewTracerProvider(ctx, "rating")
	if err != nil {
		return nil, errors.Trace(err)
	}
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return func() {
		if sdkProvider, ok := provider.(*tracesdk.TracerProvider); ok {
			if err := sdkProvider.Shutdown(context.Background()); err != nil {
				log.Logger().Error("failed to shutdown tracer provider", zap.Error(err))
			}
		}
	}, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	return config.LoadConfig(configPath)
}

func loadDataset(ctx context.Context, conf *config.Config) (*dataset.Dataset, error) {
	log.Logger().Info("load ratings", zap.String("source", log.RedactDBURL(conf.Data.Source)))
	source, err := data.Open(conf.Data.Source, conf.Data.Table)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer source.Close()
	return dataset.Load(ctx, source, conf.Data.Columns(), conf.Data.Scale())
}

func loadRecommender(ctx context.Context, conf *config.Config) (*logics.Recommender, error) {
	d, err := loadDataset(ctx, conf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	store, err := blob.Open(conf.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := cf.Load(ctx, store, conf.Model.Name)
	if err != nil {
		return nil, errors.Annotatef(err, "load model %s", conf.Model.Name)
	}
	return logics.NewRecommender(m, d), nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 4, 64)
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "rating version")
	trainCommand.Flags().Bool("progress", true, "show training progress")
	evaluateCommand.Flags().Float64("holdout", 0, "evaluate on this ratio of held out ratings instead of cross validation")
	recommendCommand.Flags().Int64("user", 0, "identifier of the user")
	recommendCommand.Flags().Int("n", 0, "number of recommendations (server.default_n if not positive)")
	_ = recommendCommand.MarkFlagRequired("user")
	rootCommand.AddCommand(versionCommand, trainCommand, evaluateCommand, recommendCommand, serveCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
