package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/neuroforge/trainlink/internal/history"
	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/neuroforge/trainlink/internal/session"
	"github.com/tailscale/hujson"
)

// readModelFile loads a hand-authored model definition. Files may carry
// comments and trailing commas; hujson standardizes them to plain JSON
// before decoding.
func readModelFile(path string) (protocol.ModelDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return protocol.ModelDefinition{}, fmt.Errorf("read model file: %w", err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return protocol.ModelDefinition{}, fmt.Errorf("standardize model file %s: %w", path, err)
	}
	var model protocol.ModelDefinition
	if err := json.Unmarshal(std, &model); err != nil {
		return protocol.ModelDefinition{}, fmt.Errorf("parse model file %s: %w", path, err)
	}
	return model, nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	g := registerGlobal(fs)
	modelPath := fs.String("model", "", "path to model definition file")
	_ = fs.Parse(args)
	if *modelPath == "" {
		return fmt.Errorf("init: -model is required")
	}

	model, err := readModelFile(*modelPath)
	if err != nil {
		return err
	}
	if err := model.Validate(); err != nil {
		return err
	}

	client, _, err := g.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx, "")

	res, err := client.InitModel(ctx, model)
	if err != nil {
		return err
	}
	fmt.Printf("model registered: %s\n", res.ModelID)
	return nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	g := registerGlobal(fs)
	modelID := fs.String("model", "", "registered model id")
	epochs := fs.Int("epochs", 0, "epoch count (0 = model default)")
	dataset := fs.String("dataset", "", "dataset id")
	split := fs.Float64("split", 0.2, "validation split")
	_ = fs.Parse(args)
	if *modelID == "" {
		return fmt.Errorf("train: -model is required")
	}

	client, cfg, err := g.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx, "")

	journal, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	runID := "run_" + uuid.NewString()
	if err := journal.StartRun(runID, *modelID, *dataset, *epochs); err != nil {
		return err
	}

	sub := client.Subscribe(session.EventTrainProgress, session.EventTrainCompleted)
	defer sub.Close()
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		for evt := range sub.C {
			if evt.Kind == session.EventTrainCompleted {
				return
			}
			var tick protocol.TrainResult
			if err := json.Unmarshal(evt.Payload, &tick); err != nil {
				continue
			}
			fmt.Printf("epoch %d/%d  loss=%.4f  accuracy=%.4f\n",
				tick.CurrentEpoch, tick.TotalEpochs, tick.Metrics["loss"], tick.Metrics["accuracy"])
			_ = journal.RecordProgress(runID, tick.CurrentEpoch, tick.Metrics["loss"], tick.Metrics["accuracy"])
		}
	}()

	res, err := client.TrainModel(ctx, *modelID, *epochs, *dataset, *split)
	if err != nil {
		_ = journal.FinishRun(runID, string(protocol.StatusError), 0, 0, 0)
		return err
	}

	select {
	case <-watcherDone:
	case <-time.After(time.Second):
	}

	if err := journal.FinishRun(runID, string(res.Status),
		res.FinalMetrics["loss"], res.FinalMetrics["accuracy"], res.TrainingTime); err != nil {
		return err
	}
	fmt.Printf("training %s in %.2fs  loss=%.4f  accuracy=%.4f  val_loss=%.4f  val_accuracy=%.4f\n",
		res.Status, res.TrainingTime,
		res.FinalMetrics["loss"], res.FinalMetrics["accuracy"],
		res.FinalMetrics["val_loss"], res.FinalMetrics["val_accuracy"])
	return nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	g := registerGlobal(fs)
	modelID := fs.String("model", "", "registered model id")
	layerID := fs.String("layer", "", "layer id or name")
	queryType := fs.String("type", "summary", "weights|gradients|activations|summary")
	_ = fs.Parse(args)
	if *modelID == "" || *layerID == "" {
		return fmt.Errorf("query: -model and -layer are required")
	}
	qt := protocol.QueryType(*queryType)
	if !qt.Known() {
		return fmt.Errorf("query: unknown type %q", *queryType)
	}

	client, _, err := g.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx, "")

	res, err := client.QueryLayer(ctx, *modelID, *layerID, qt)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, res.Result, "", "  "); err != nil {
		fmt.Println(string(res.Result))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func runPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	g := registerGlobal(fs)
	_ = fs.Parse(args)

	client, _, err := g.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx, "")

	start := time.Now()
	if _, err := client.Ping(ctx); err != nil {
		return err
	}
	fmt.Printf("pong (%s)\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	g := registerGlobal(fs)
	_ = fs.Parse(args)

	client, cfg, err := g.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx, "")

	if err := client.Connect(ctx); err != nil {
		return err
	}
	stats := client.Stats()
	fmt.Printf("endpoint: %s\n", cfg.Session.URL())
	fmt.Printf("state: %s\n", stats.State)
	fmt.Printf("reconnect attempts: %d\n", stats.ReconnectAttempts)
	fmt.Printf("pending requests: %d\n", len(stats.Pending))
	for _, p := range stats.Pending {
		fmt.Printf("  %s %s (age %s)\n", p.RequestID, p.Command, time.Since(p.CreatedAt).Round(time.Millisecond))
	}
	return nil
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	g := registerGlobal(fs)
	limit := fs.Int("limit", 10, "max runs to list")
	_ = fs.Parse(args)

	cfg, err := g.resolve()
	if err != nil {
		return err
	}
	journal, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.RecentRuns(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  model=%s dataset=%s epochs=%d status=%s loss=%.4f accuracy=%.4f (%s)\n",
			run.ID, run.ModelID, run.DatasetID, run.Epochs, run.Status,
			run.FinalLoss, run.FinalAccuracy, run.StartedAt.Format(time.RFC3339))
	}
	return nil
}
