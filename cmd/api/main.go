package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"lastid.org/internal/httpapi"
	"lastid.org/internal/identity"
	"lastid.org/internal/obs"
	"lastid.org/internal/resource"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("LASTID_COMMIT"))

	// Postgres when a DSN is configured; the in-memory store otherwise, for
	// local development without a database.
	var (
		store identity.Store
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("LASTID_PG_DSN"); dsn != "" {
		pg, err := identity.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pg.Close()
		store = pg
		probe = httpapi.ReadyProbe{DB: pg.DB()}
	} else {
		mem := identity.NewMemory()
		fix, err := identity.SeedDemo(mem)
		if err != nil {
			log.Fatalf("seed demo fixture: %v", err)
		}
		log.Printf("LASTID_PG_DSN not set, using in-memory store (demo client %s secret %q token %s)",
			fix.ClientKey, identity.DemoSecret, fix.Token)
		store = mem
	}

	resolver := identity.NewPermissionResolver(store)
	projector := identity.NewUserInfoProjector(store, resolver)
	verifier := resource.NewVerifier(store, projector)
	registry := resource.NewRegistry(resource.NewHandlers(store, projector), nil)

	api := httpapi.New(probe, version, store, verifier, registry)
	api.SetRateLimit(envInt("LASTID_RATE_BURST", 20), envInt("LASTID_RATE_PER_SEC", 10))
	api.SetMaxBodyBytes(int64(envInt("LASTID_MAX_BODY_BYTES", 1<<20)))

	addr := os.Getenv("LASTID_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting lastid-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// gRPC health surface for load balancers that speak grpc_health_v1.
	var grpcSrv *grpc.Server
	if grpcAddr := os.Getenv("LASTID_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewHealthServer(probe).Register(grpcSrv)
		log.Printf("Starting gRPC health on %s", grpcAddr)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	log.Println("Stopped")
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Fatalf("%s: invalid value %q", name, raw)
	}
	return n
}
