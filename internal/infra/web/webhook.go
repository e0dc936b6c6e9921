package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"signal-billing/internal/domain"
	"signal-billing/internal/infra/payment"
	"signal-billing/internal/usecase"
)

// sepayWebhookPayload mirrors the JSON body SePay POSTs for every movement on
// the monitored account, inbound and outbound alike.
type sepayWebhookPayload struct {
	ID              int64  `json:"id"`
	Gateway         string `json:"gateway"`
	TransactionDate string `json:"transactionDate"` // "2006-01-02 15:04:05"
	AccountNumber   string `json:"accountNumber"`
	Code            string `json:"code"`
	Content         string `json:"content"`
	TransferType    string `json:"transferType"` // "in" | "out"
	TransferAmount  int64  `json:"transferAmount"`
	Accumulated     int64  `json:"accumulated"`
	SubAccount      string `json:"subAccount"`
	ReferenceCode   string `json:"referenceCode"`
	Description     string `json:"description"`
}

// sepayWebhookHandler feeds provider deliveries into the reconciler. Every
// outcome the reconciler reports is acknowledged with 200 so the provider
// stops redelivering; only transient failures get a 5xx to trigger a retry.
func (s *Server) sepayWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !payment.VerifySePayWebhookAuth(s.webhookKey, r.Header.Get("Authorization")) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook delivery with bad credentials")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var p sepayWebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		txDate, err := time.ParseInLocation("2006-01-02 15:04:05", p.TransactionDate, time.Local)
		if err != nil {
			txDate = time.Now()
		}

		res, err := s.reconciler.Ingest(r.Context(), usecase.BankWebhookEvent{
			ProviderTxID:    p.ID,
			Gateway:         p.Gateway,
			TransactionDate: txDate,
			AccountNumber:   p.AccountNumber,
			TransferType:    p.TransferType,
			TransferAmount:  p.TransferAmount,
			Content:         p.Content,
			ReferenceNumber: p.ReferenceCode,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.log.Error().Err(err).Int64("provider_tx_id", p.ID).Msg("reconciliation failed")
			writeJSON(w, http.StatusInternalServerError, struct {
				Success bool `json:"success"`
			}{false})
			return
		}

		writeJSON(w, http.StatusOK, struct {
			Success   bool   `json:"success"`
			Outcome   string `json:"outcome"`
			Duplicate bool   `json:"duplicate"`
		}{true, string(res.Outcome), res.Duplicate})
	}
}
