// Command prophet predicts protein complexes from co-fractionation
// elution profiles and compares them across conditions.
//
// Usage:
//
//	prophet train -profiles data.tsv -labels labels.tsv -model model.json [-config prophet.yaml]
//	prophet run -profiles data.tsv -model model.json -out results/ [-config prophet.yaml] [-store prophet.db]
//	prophet schedule -profiles data.tsv -model model.json -store prophet.db -cron "0 2 * * *" [-config prophet.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/complexome/prophet/pkg/classifier"
	"github.com/complexome/prophet/pkg/config"
	"github.com/complexome/prophet/pkg/features"
	"github.com/complexome/prophet/pkg/logging"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/pipeline"
	"github.com/complexome/prophet/pkg/profile"
	"github.com/complexome/prophet/pkg/resultstore"
	"github.com/complexome/prophet/pkg/scheduler"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: prophet <train|run|schedule> [flags]")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "train":
		err = runTrain(os.Args[2:])
	case "run":
		err = runAnalysis(os.Args[2:])
	case "schedule":
		err = runSchedule(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "prophet: %v\n", err)
		os.Exit(1)
	}
}

// modelBundle persists the trained forest together with the threshold the
// trainer calibrated for it.
type modelBundle struct {
	Threshold float64                  `json:"threshold"`
	Forest    *classifier.RandomForest `json:"forest"`
}

func saveBundle(path string, forest *classifier.RandomForest, threshold float64) error {
	data, err := json.MarshalIndent(modelBundle{Threshold: threshold, Forest: forest}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func loadBundle(path string) (*classifier.RandomForest, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading model: %w", err)
	}
	var bundle modelBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, 0, fmt.Errorf("decoding model: %w", err)
	}
	if bundle.Forest == nil || len(bundle.Forest.Trees) == 0 {
		return nil, 0, models.NewDataError("empty model", "%s holds no trained trees", path)
	}
	return bundle.Forest, bundle.Threshold, nil
}

func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log := logging.GetLogger()
	log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	log.SetFormat(cfg.Logging.Format)
	return cfg, log, nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	profilesPath := fs.String("profiles", "", "elution-profile TSV")
	labelsPath := fs.String("labels", "", "reference pair-label TSV")
	modelPath := fs.String("model", "model.json", "output model file")
	configPath := fs.String("config", "", "YAML configuration file")
	fs.Parse(args)

	if *profilesPath == "" || *labelsPath == "" {
		return models.NewConfigurationError("flags", "-profiles and -labels are required")
	}

	cfg, log, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	rows, err := readProfileTable(*profilesPath)
	if err != nil {
		return err
	}
	labels, err := readLabelTable(*labelsPath)
	if err != nil {
		return err
	}

	X, y, err := trainingMatrix(cfg, rows, labels)
	if err != nil {
		return err
	}
	log.Info("training matrix built", logging.Component("train"),
		logging.Int("rows", len(X)), logging.Int("labels", len(labels)))

	trainCfg := classifier.DefaultTrainingConfig()
	trainCfg.NumTrees = cfg.Classifier.NumTrees
	trainCfg.MaxDepth = cfg.Classifier.MaxDepth
	trainCfg.MinSamplesSplit = cfg.Classifier.MinSamplesSplit
	trainCfg.MinSamplesLeaf = cfg.Classifier.MinSamplesLeaf
	trainCfg.Folds = cfg.Classifier.Folds
	trainCfg.TargetFDR = cfg.Classifier.TargetFDR
	trainCfg.RandomSeed = cfg.Classifier.RandomSeed
	trainer := classifier.NewTrainer(trainCfg)
	result, err := trainer.Train(X, y, models.FeatureNames())
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}

	if err := saveBundle(*modelPath, result.Model, result.Threshold); err != nil {
		return err
	}

	log.Info("model trained", logging.Component("train"),
		logging.Float("threshold", result.Threshold),
		logging.Float("estimated_fdr", result.EstimatedFDR),
		logging.Float("validation_accuracy", result.ValidateMetrics.Accuracy),
		logging.String("model", *modelPath))
	fmt.Println(result.ValidateMetrics.FormatMetrics())
	return nil
}

// trainingMatrix extracts feature vectors for every labeled pair in every
// condition where both proteins were observed.
func trainingMatrix(cfg *config.Config, rows map[string][]profile.Row, labels []labeledPair) ([][]float64, []string, error) {
	store := profile.NewStore()
	for condition, condRows := range rows {
		if err := store.Load(condition, condRows); err != nil {
			return nil, nil, err
		}
	}

	var X [][]float64
	var y []string
	for _, condition := range store.Conditions() {
		profiles := profile.NormalizeAll(store.Profiles(condition), models.NormScheme(cfg.Profiles.Normalization))
		extractor := features.NewExtractor(profiles, features.Config{
			NoiseFloor: cfg.Profiles.NoiseFloor,
			Window:     cfg.Features.Window,
		})
		for _, lp := range labels {
			if _, ok := profiles[lp.Pair.A]; !ok {
				continue
			}
			if _, ok := profiles[lp.Pair.B]; !ok {
				continue
			}
			X = append(X, extractor.Extract(lp.Pair).Values())
			y = append(y, lp.Label)
		}
	}
	if len(X) == 0 {
		return nil, nil, models.NewInsufficientDataError("no labeled pair was observed in any condition")
	}
	return X, y, nil
}

func runAnalysis(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	profilesPath := fs.String("profiles", "", "elution-profile TSV")
	modelPath := fs.String("model", "model.json", "trained model file")
	outDir := fs.String("out", ".", "output directory")
	configPath := fs.String("config", "", "YAML configuration file")
	storePath := fs.String("store", "", "SQLite result store (empty: no persistence)")
	fs.Parse(args)

	if *profilesPath == "" {
		return models.NewConfigurationError("flags", "-profiles is required")
	}

	cfg, log, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	svc, store, err := buildPipeline(cfg, log, *modelPath, *storePath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	rows, err := readProfileTable(*profilesPath)
	if err != nil {
		return err
	}

	result, err := svc.Run(context.Background(), filepath.Base(*profilesPath), rows)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := writeComplexTable(filepath.Join(*outDir, "complexes.tsv"), result.Complexes); err != nil {
		return err
	}
	if len(result.Differential) > 0 {
		if err := writeDifferentialTable(filepath.Join(*outDir, "differential.tsv"), result.Differential); err != nil {
			return err
		}
	}

	log.Info("results written", logging.Component("run"),
		logging.String("run_id", result.RunID), logging.String("dir", *outDir))
	return nil
}

func runSchedule(args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	profilesPath := fs.String("profiles", "", "elution-profile TSV, re-read on every run")
	modelPath := fs.String("model", "model.json", "trained model file")
	configPath := fs.String("config", "", "YAML configuration file")
	storePath := fs.String("store", "prophet.db", "SQLite result store holding the recurring runs")
	cronExpr := fs.String("cron", "@daily", "cron schedule")
	fs.Parse(args)

	if *profilesPath == "" {
		return models.NewConfigurationError("flags", "-profiles is required")
	}
	if *storePath == "" {
		return models.NewConfigurationError("flags", "-store is required for scheduled runs")
	}

	cfg, log, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	svc, store, err := buildPipeline(cfg, log, *modelPath, *storePath)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	loader := func(dataset string) (map[string][]profile.Row, error) {
		return readProfileTable(*profilesPath)
	}
	sched, err := scheduler.NewService(svc, loader, log)
	if err != nil {
		return err
	}
	if _, err := sched.Create("recurring-analysis", filepath.Base(*profilesPath), *cronExpr, true); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down", logging.Component("schedule"))
	return nil
}

// buildPipeline loads the model bundle and assembles the pipeline service,
// optionally backed by a SQLite result store.
func buildPipeline(cfg *config.Config, log *logging.Logger, modelPath, storePath string) (*pipeline.Service, *resultstore.SQLiteStore, error) {
	forest, threshold, err := loadBundle(modelPath)
	if err != nil {
		return nil, nil, err
	}
	scorer, err := classifier.NewScorer(forest, threshold)
	if err != nil {
		return nil, nil, err
	}

	var store *resultstore.SQLiteStore
	var storeIface pipeline.ResultStore
	if storePath != "" {
		store, err = resultstore.NewSQLiteStore(storePath)
		if err != nil {
			return nil, nil, err
		}
		storeIface = store
	}

	svc, err := pipeline.NewService(cfg, log, scorer, storeIface)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return svc, store, nil
}
