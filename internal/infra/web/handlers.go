package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"signal-billing/internal/domain"
	"signal-billing/internal/domain/model"
	"signal-billing/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything not
// recognized is a 500 with the generic message; sentinel text is safe to echo.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var insufficient *domain.InsufficientFundsError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrDuplicateSettlement):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrIntentExpired):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, struct {
			Error    string `json:"error"`
			Required int64  `json:"required"`
			Balance  int64  `json:"balance"`
			Shortage int64  `json:"shortage"`
		}{domain.ErrInsufficientFunds.Error(), insufficient.Required, insufficient.Available, insufficient.Shortage()})
	case errors.Is(err, domain.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, name, def string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		v = def
	}
	n, _ := strconv.Atoi(v)
	return n
}

// ---- wallets ----

func walletGetHandler(walletUC usecase.WalletUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerID")
		currency := r.URL.Query().Get("currency")
		wallet, err := walletUC.Get(r.Context(), ownerID, currency)
		if err != nil {
			writeDomainError(w, err, "Failed to get wallet")
			return
		}
		writeJSON(w, http.StatusOK, wallet)
	}
}

func walletLedgerHandler(walletUC usecase.WalletUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := chi.URLParam(r, "ownerID")
		currency := r.URL.Query().Get("currency")
		limit := queryInt(r, "limit", "50")
		entries, err := walletUC.History(r.Context(), ownerID, currency, limit)
		if err != nil {
			writeDomainError(w, err, "Failed to list ledger entries")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data  []*model.LedgerEntry `json:"data"`
			Limit int                  `json:"limit"`
		}{entries, limit})
	}
}

// ---- top-ups and intents ----

type topupCreateRequest struct {
	OwnerID string                 `json:"owner_id"`
	Amount  int64                  `json:"amount"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

func topupCreateHandler(intentUC usecase.IntentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		intent, err := intentUC.CreateTopup(r.Context(), req.OwnerID, req.Amount, req.Meta)
		if err != nil {
			writeDomainError(w, err, "Failed to create top-up")
			return
		}
		writeJSON(w, http.StatusCreated, intent)
	}
}

func intentGetHandler(intentUC usecase.IntentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intent, err := intentUC.Get(r.Context(), r.URL.Query().Get("owner_id"), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, "Failed to get intent")
			return
		}
		writeJSON(w, http.StatusOK, intent)
	}
}

func intentListHandler(intentUC usecase.IntentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		limit := queryInt(r, "limit", "50")
		offset := queryInt(r, "offset", "0")
		intents, err := intentUC.ListByOwner(r.Context(), ownerID, limit, offset)
		if err != nil {
			writeDomainError(w, err, "Failed to list intents")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data   []*model.PaymentIntent `json:"data"`
			Limit  int                    `json:"limit"`
			Offset int                    `json:"offset"`
		}{intents, limit, offset})
	}
}

type attemptCreateRequest struct {
	OwnerID  string `json:"owner_id"`
	BankCode string `json:"bank_code"`
}

func attemptCreateHandler(intentUC usecase.IntentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req attemptCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		attempt, err := intentUC.CreateAttempt(r.Context(), req.OwnerID, chi.URLParam(r, "id"), req.BankCode)
		if err != nil {
			writeDomainError(w, err, "Failed to create attempt")
			return
		}
		writeJSON(w, http.StatusCreated, attempt)
	}
}

func intentExpireHandler(intentUC usecase.IntentUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := intentUC.Expire(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, err, "Failed to expire intent")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- orders ----

type orderItemRequest struct {
	SubjectID      int64                  `json:"subject_id"`
	Price          int64                  `json:"price"`
	LicenseDays    *int                   `json:"license_days,omitempty"` // null = lifetime
	AutoRenew      bool                   `json:"auto_renew"`
	CycleDays      *int                   `json:"cycle_days,omitempty"`
	AutoRenewPrice *int64                 `json:"auto_renew_price,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

type orderCreateRequest struct {
	OwnerID     string             `json:"owner_id"`
	Method      string             `json:"method"` // wallet | bank_transfer
	Description string             `json:"description"`
	Items       []orderItemRequest `json:"items"`
}

type orderCreateResponse struct {
	Order               *model.Order         `json:"order"`
	Intent              *model.PaymentIntent `json:"intent,omitempty"`
	InsufficientBalance bool                 `json:"insufficient_balance"`
	WalletBalance       int64                `json:"wallet_balance,omitempty"`
	Shortage            int64                `json:"shortage,omitempty"`
}

func orderCreateHandler(orderUC usecase.OrderUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		items := make([]usecase.OrderItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, usecase.OrderItemInput{
				SubjectID:         it.SubjectID,
				Price:             it.Price,
				LicenseDays:       it.LicenseDays,
				AutoRenew:         it.AutoRenew,
				CycleDaysOverride: it.CycleDays,
				AutoRenewPrice:    it.AutoRenewPrice,
				Meta:              it.Meta,
			})
		}
		res, err := orderUC.CreateOrder(r.Context(), req.OwnerID, items, model.PaymentMethod(req.Method), req.Description)
		if err != nil {
			writeDomainError(w, err, "Failed to create order")
			return
		}
		writeJSON(w, http.StatusCreated, orderCreateResponse{
			Order:               res.Order,
			Intent:              res.Intent,
			InsufficientBalance: res.InsufficientBalance,
			WalletBalance:       res.WalletBalance,
			Shortage:            res.Shortage,
		})
	}
}

func orderGetHandler(orderUC usecase.OrderUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orderUC.Get(r.Context(), r.URL.Query().Get("owner_id"), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, "Failed to get order")
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

type ownerRequest struct {
	OwnerID string `json:"owner_id"`
}

func orderPayHandler(orderUC usecase.OrderUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ownerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		order, err := orderUC.PayWithWallet(r.Context(), req.OwnerID, chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, "Failed to pay order")
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func orderTopupHandler(orderUC usecase.OrderUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ownerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		intent, err := orderUC.CreateTopupForOrder(r.Context(), req.OwnerID, chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err, "Failed to create top-up for order")
			return
		}
		writeJSON(w, http.StatusCreated, intent)
	}
}

// ---- auto-renew subscriptions ----

func subscriptionListHandler(renewUC usecase.AutoRenewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := renewUC.List(r.Context(), r.URL.Query().Get("owner_id"))
		if err != nil {
			writeDomainError(w, err, "Failed to list subscriptions")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.AutoRenewSubscription `json:"data"`
		}{subs})
	}
}

func subscriptionAttemptsHandler(renewUC usecase.AutoRenewUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", "20")
		attempts, err := renewUC.Attempts(r.Context(), r.URL.Query().Get("owner_id"), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeDomainError(w, err, "Failed to list attempts")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Data []*model.AutoRenewAttempt `json:"data"`
		}{attempts})
	}
}

func subscriptionTransitionHandler(fn func(ctx context.Context, ownerID, subscriptionID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ownerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := fn(r.Context(), req.OwnerID, chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, err, "Failed to update subscription")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
