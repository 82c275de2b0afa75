package ledgerapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"moneybook/internal/serviceiface"
)

// LedgerAPIService exposes the ledger over HTTP. Start is non-blocking; the
// server runs in its own goroutine until Stop.
type LedgerAPIService struct {
	config map[string]interface{}
	db     *pgxpool.Pool
	server *http.Server
}

func NewLedgerAPIService(cfg map[string]interface{}, db *pgxpool.Pool) serviceiface.Service {
	return &LedgerAPIService{config: cfg, db: db}
}

func (s *LedgerAPIService) Name() string {
	return "ledgerapi"
}

func (s *LedgerAPIService) Start() error {
	port := 7143
	if s.config != nil {
		if v, ok := s.config["port"].(int); ok && v > 0 {
			port = v
		}
	}

	router := NewRouter(s.db)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		log.Printf("Ledger API listening on :%d", port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: ledger API server: %v", err)
		}
	}()
	return nil
}

func (s *LedgerAPIService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// NewRouter wires every ledger endpoint.
func NewRouter(db *pgxpool.Pool) *mux.Router {
	h := NewHandler(db)
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ledger API is active"))
	}).Methods("GET")

	router.HandleFunc("/ingest/bank", h.IngestBank).Methods("POST")
	router.HandleFunc("/classify/run", h.RunClassification).Methods("POST")
	router.HandleFunc("/transfers/run", h.RunTransferDetection).Methods("POST")

	router.HandleFunc("/transactions/{id}/category", h.SetManualCategory).Methods("POST")
	router.HandleFunc("/transactions/{id}/reclassify", h.ReclassifyExpense).Methods("POST")

	router.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts/{id}/initial-balance", h.SetInitialBalance).Methods("PUT")
	router.HandleFunc("/accounts/{id}/history", h.AccountHistory).Methods("GET")

	router.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	router.HandleFunc("/categories/rebuild-paths", h.RebuildCategoryPaths).Methods("POST")

	return router
}
