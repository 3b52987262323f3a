package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neuroforge/trainlink/internal/protocol"
	"github.com/neuroforge/trainlink/internal/session"
	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func testModel() protocol.ModelDefinition {
	return protocol.ModelDefinition{
		Metadata: protocol.ModelMetadata{Name: "mnist-cnn", Version: "1"},
		Dataset:  "mnist",
		Hyperparameters: protocol.Hyperparameters{
			Optimizer: protocol.NamedParams{Name: "adam", Params: map[string]float64{"lr": 0.001}},
			Loss:      protocol.NamedParams{Name: "cross_entropy"},
			Seed:      42,
			Epochs:    2,
		},
		Layers: []protocol.Layer{
			{ID: "l0", Name: "in", Type: protocol.LayerInput},
			{ID: "l1", Name: "conv1", Type: protocol.LayerConv2D, Params: map[string]any{"filters": 16.0}},
			{ID: "l2", Name: "out", Type: protocol.LayerOutput},
		},
	}
}

// startBackend runs a Server on an httptest listener and returns a
// session config pointed at it.
func startBackend(t *testing.T, cfg HandlerConfig) (session.Config, *MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.TrainTick == 0 {
		cfg.TrainTick = time.Millisecond
	}
	store := NewMemoryStore()
	srv := NewServer(store, cfg, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	return session.Config{
		Host:           host,
		Port:           port,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		PingInterval:   time.Minute,
		ReconnectBase:  time.Millisecond,
	}, store
}

func startClient(t *testing.T, cfg session.Config) *session.Client {
	t.Helper()
	client, err := session.NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Close(ctx, "test done")
	})
	return client
}

func TestTrainingSessionEndToEnd(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{})
	client := startClient(t, cfg)
	ctx := context.Background()

	sub := client.Subscribe(session.EventTrainProgress, session.EventTrainCompleted)
	defer sub.Close()

	initRes, err := client.InitModel(ctx, testModel())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if initRes.Status != protocol.StatusSuccess {
		t.Fatalf("init status got=%q", initRes.Status)
	}
	if !strings.HasPrefix(initRes.ModelID, "mdl_") {
		t.Fatalf("model id got=%q", initRes.ModelID)
	}

	trainRes, err := client.TrainModel(ctx, initRes.ModelID, 3, "mnist", 0.2)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if trainRes.Status != protocol.StatusCompleted {
		t.Fatalf("train status got=%q", trainRes.Status)
	}
	if trainRes.TotalEpochs != 3 {
		t.Fatalf("total epochs got=%d", trainRes.TotalEpochs)
	}
	for _, key := range []string{"loss", "accuracy", "val_loss", "val_accuracy"} {
		if _, ok := trainRes.FinalMetrics[key]; !ok {
			t.Fatalf("final metrics missing %q: %v", key, trainRes.FinalMetrics)
		}
	}
	if trainRes.TrainingTime <= 0 {
		t.Fatalf("training time got=%v", trainRes.TrainingTime)
	}

	progress, completed := 0, 0
	deadline := time.After(2 * time.Second)
	for completed == 0 {
		select {
		case evt := <-sub.C:
			switch evt.Kind {
			case session.EventTrainProgress:
				progress++
			case session.EventTrainCompleted:
				completed++
			}
		case <-deadline:
			t.Fatalf("no completed event; progress=%d", progress)
		}
	}
	if progress != 3 {
		t.Fatalf("progress events got=%d want=3", progress)
	}

	queryRes, err := client.QueryLayer(ctx, initRes.ModelID, "l1", protocol.QueryWeights)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var payload struct {
		Shape   []int       `json:"shape"`
		Weights [][]float64 `json:"weights"`
	}
	if err := json.Unmarshal(queryRes.Result, &payload); err != nil {
		t.Fatalf("decode query result: %v", err)
	}
	if len(payload.Shape) != 2 || len(payload.Weights) != payload.Shape[0] {
		t.Fatalf("weights shape mismatch: %v vs %d rows", payload.Shape, len(payload.Weights))
	}

	if _, err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := client.Close(ctx, "user_terminated"); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTrainUnknownModelRejected(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{})
	client := startClient(t, cfg)

	_, err := client.TrainModel(context.Background(), "mdl_missing", 1, "mnist", 0.2)
	var remote *session.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.ErrorCode != "E_NO_MODEL" {
		t.Fatalf("error code got=%q", remote.ErrorCode)
	}
}

func TestQueryUnknownLayerRejected(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{})
	client := startClient(t, cfg)
	ctx := context.Background()

	initRes, err := client.InitModel(ctx, testModel())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	_, err = client.QueryLayer(ctx, initRes.ModelID, "nope", protocol.QueryWeights)
	var remote *session.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.ErrorCode != "E_NO_LAYER" {
		t.Fatalf("error code got=%q", remote.ErrorCode)
	}
}

func TestInitInvalidModelRejected(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{})
	client := startClient(t, cfg)

	model := testModel()
	model.Layers = model.Layers[:2] // no output layer
	_, err := client.InitModel(context.Background(), model)
	var remote *session.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.ErrorCode != "E_INVALID_MODEL" {
		t.Fatalf("error code got=%q", remote.ErrorCode)
	}
}

func TestUpgradeRequiresToken(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{AuthToken: "sekrit"})

	anonymous := startClient(t, cfg)
	if err := anonymous.Connect(context.Background()); err == nil {
		t.Fatal("expected connect to fail without token")
	}

	cfg.AuthToken = "sekrit"
	authed := startClient(t, cfg)
	if _, err := authed.Ping(context.Background()); err != nil {
		t.Fatalf("authed ping: %v", err)
	}
}

func TestMalformedFrameAnsweredWhenCorrelatable(t *testing.T) {
	testlog.Start(t)
	cfg, _ := startBackend(t, HandlerConfig{})

	conn, _, err := websocket.DefaultDialer.Dial(cfg.WithDefaults().URL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// No requestId to echo: the frame is dropped without an answer.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"messageType":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Recoverable requestId: an error response comes back.
	frame := `{"messageType":"bogus","commandType":"train","requestId":"r-1","timestamp":1}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.RequestID != "r-1" {
		t.Fatalf("requestId got=%q", env.RequestID)
	}
	probe, ok := protocol.ProbeStatus(env.Data)
	if !ok || probe.Status != protocol.StatusError || probe.ErrorCode != "E_MALFORMED" {
		t.Fatalf("unexpected error payload: %+v ok=%v", probe, ok)
	}
}

func TestLayerQueryIsDeterministic(t *testing.T) {
	testlog.Start(t)
	model := Model{ID: "mdl_fixed", Definition: testModel()}
	layer := model.Definition.Layers[1]

	first, err := layerQueryResult(model, layer, protocol.QueryGradients)
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	second, err := layerQueryResult(model, layer, protocol.QueryGradients)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("same layer and seed should produce identical results")
	}
}
