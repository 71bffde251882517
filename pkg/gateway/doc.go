// Package gateway provides an embeddable CI matrix execution engine behind
// a REST API.
//
// # Overview
//
// The engine expands a matrix of named dimensions into the full cross
// product of job configurations, runs each job's step sequence against a
// gate policy, and aggregates the per-job verdicts into one pipeline
// verdict per triggering event. Jobs are independent and run concurrently
// up to a configured limit.
//
// # Basic Usage
//
// Create a gateway programmatically:
//
//	pipeline, err := config.LoadPipeline("configs/pipeline.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := &gateway.Config{
//		Server: gateway.ServerConfig{
//			Port:         8080,
//			ReadTimeout:  30 * time.Second,
//			WriteTimeout: 30 * time.Second,
//		},
//		Auth: gateway.AuthConfig{
//			APIKeys: []gateway.APIKey{
//				{Name: "my-app", Key: "secret-key-here"},
//			},
//		},
//		Engine: gateway.EngineConfig{
//			MaxParallel: 4,
//			StepTimeout: 5 * time.Minute,
//		},
//		Pipeline: pipeline,
//		Logging: gateway.LoggingConfig{
//			Level:  "info",
//			Format: "json",
//		},
//	}
//
//	gw, err := gateway.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := gw.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Embedding
//
// Mount the engine's handler inside an existing HTTP server:
//
//	mux := http.NewServeMux()
//	mux.Handle("/ci/", http.StripPrefix("/ci", gw.Handler()))
//
// # Triggering runs
//
// Runs start when a trigger event arrives at POST /v1/events:
//
//	{"event": "push", "branch": "main", "commit": "abc123"}
//
// A push run for a branch supersedes any in-flight push run for the same
// branch: the older run is canceled and reports no verdict. Verdicts are
// available with full per-job, per-step detail at GET /v1/runs/{run_id}.
package gateway
