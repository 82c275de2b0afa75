package ledgerapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"moneybook/api"
	"moneybook/internal/category"
	"moneybook/internal/config"
	"moneybook/internal/ingest"
	"moneybook/internal/jobs"
	"moneybook/internal/ledger"
)

// Handler carries the shared pool and the services built on it.
type Handler struct {
	db         *pgxpool.Pool
	ledger     *ledger.Service
	categories *category.Service
	pipeline   *ingest.Pipeline
}

func NewHandler(db *pgxpool.Pool) *Handler {
	return &Handler{
		db:         db,
		ledger:     ledger.NewService(ledger.NewPgStore(db)),
		categories: category.NewService(db),
		pipeline:   ingest.NewPipeline(db),
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound),
		errors.Is(err, category.ErrParentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotExpense),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// IngestBank accepts a parsed bank statement for one account.
func (h *Handler) IngestBank(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64            `json:"account_id"`
		Rows      []ingest.BankRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AccountID == 0 {
		api.RespondWithError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	res, err := h.pipeline.IngestBank(r.Context(), req.AccountID, req.Rows)
	if err != nil {
		api.RespondWithError(w, statusFor(err), "ingest failed: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{
		"batch_id":  res.BatchID,
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"transfers": res.Transfers,
	})
}

// RunClassification triggers the classification pass outside its schedule.
func (h *Handler) RunClassification(w http.ResponseWriter, r *http.Request) {
	if err := jobs.ProcessUncategorizedTransactions(h.db, config.ClassifyBatchSize); err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "classification pass failed: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, nil)
}

// RunTransferDetection triggers the transfer pass outside its schedule.
func (h *Handler) RunTransferDetection(w http.ResponseWriter, r *http.Request) {
	if err := jobs.ProcessUndetectedTransfers(h.db, config.ClassifyBatchSize); err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "transfer pass failed: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, nil)
}

// SetManualCategory pins a transaction to a user-chosen category.
func (h *Handler) SetManualCategory(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req struct {
		CategoryID int64 `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CategoryID == 0 {
		api.RespondWithError(w, http.StatusBadRequest, "category_id is required")
		return
	}

	if err := h.ledger.SetManualCategory(r.Context(), txID, req.CategoryID); err != nil {
		api.RespondWithError(w, statusFor(err), err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, nil)
}

// ReclassifyExpense converts an expense into a transfer to a linked account.
func (h *Handler) ReclassifyExpense(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req struct {
		LinkedAccountID int64 `json:"linked_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LinkedAccountID == 0 {
		api.RespondWithError(w, http.StatusBadRequest, "linked_account_id is required")
		return
	}

	info, err := h.ledger.ReclassifyExpense(r.Context(), txID, req.LinkedAccountID)
	if err != nil {
		api.RespondWithError(w, statusFor(err), err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{
		"transaction_id":    info.ID,
		"type":              info.Type,
		"category_id":       info.CategoryID,
		"linked_account_id": info.LinkedAccountID,
	})
}

// CreateAccount registers a new account with its starting balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		InitialBalance   int64  `json:"initial_balance"`
		IsAsset          bool   `json:"is_asset"`
		IsInvestment     bool   `json:"is_investment"`
		CurrencyExponent int32  `json:"currency_exponent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		api.RespondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	var id int64
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO accounts (name, balance, initial_balance, is_asset, is_investment, currency_exponent)
		 VALUES ($1, $2, $2, $3, $4, $5)
		 RETURNING id`,
		req.Name, req.InitialBalance, req.IsAsset, req.IsInvestment, req.CurrencyExponent).Scan(&id)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "failed to create account: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// SetInitialBalance rebases an account's starting balance.
func (h *Handler) SetInitialBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	var req struct {
		InitialBalance int64 `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.ledger.SetInitialBalance(r.Context(), accountID, req.InitialBalance); err != nil {
		api.RespondWithError(w, statusFor(err), err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, nil)
}

// AccountHistory lists an account's balance history, newest first.
func (h *Handler) AccountHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r)
	if err != nil {
		api.RespondWithError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT change_date, previous_balance, change_amount, new_balance, reason
		 FROM account_balance_history
		 WHERE account_id = $1
		 ORDER BY change_date DESC, id DESC`, accountID)
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "failed to query history: "+err.Error())
		return
	}
	defer rows.Close()

	history := make([]map[string]interface{}, 0)
	for rows.Next() {
		var (
			changeDate           time.Time
			prev, change, newBal int64
			reason               string
		)
		if err := rows.Scan(&changeDate, &prev, &change, &newBal, &reason); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "failed to scan history: "+err.Error())
			return
		}
		history = append(history, map[string]interface{}{
			"change_date":      changeDate,
			"previous_balance": prev,
			"change_amount":    change,
			"new_balance":      newBal,
			"reason":           reason,
		})
	}
	if err := rows.Err(); err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "failed to read history: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, history)
}

// CreateCategory adds a category under an optional parent.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		Code            string `json:"code"`
		TransactionType string `json:"transaction_type"`
		ParentID        int64  `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Code == "" {
		api.RespondWithError(w, http.StatusBadRequest, "name and code are required")
		return
	}

	cat, err := h.categories.Add(r.Context(), req.Name, req.Code, req.TransactionType, req.ParentID)
	if err != nil {
		api.RespondWithError(w, statusFor(err), "failed to create category: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusCreated, map[string]interface{}{
		"id":    cat.ID,
		"path":  cat.Path,
		"depth": cat.Depth,
	})
}

// RebuildCategoryPaths repairs every materialized path from the parent links.
func (h *Handler) RebuildCategoryPaths(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.categories.RebuildAll(r.Context())
	if err != nil {
		api.RespondWithError(w, http.StatusInternalServerError, "rebuild failed: "+err.Error())
		return
	}
	api.RespondWithPayload(w, http.StatusOK, map[string]interface{}{"repaired": repaired})
}
