package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"lottery/domain/entities"
	"lottery/domain/interfaces"
	"lottery/domain/ledger"
	"lottery/domain/utils"
)

// Response is the envelope of every API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// AmountRequest carries a stake or deposit. Exactly one field must be set.
type AmountRequest struct {
	Wei   string `json:"wei,omitempty"`
	Ether string `json:"ether,omitempty"`
}

// Amount returns the requested amount in wei
func (r AmountRequest) Amount() (*uint256.Int, error) {
	switch {
	case r.Wei != "" && r.Ether != "":
		return nil, errors.New("set either wei or ether, not both")
	case r.Wei != "":
		return utils.ParseWei(r.Wei)
	case r.Ether != "":
		return utils.ParseEther(r.Ether)
	default:
		return nil, errors.New("amount is required")
	}
}

type ledgerResponse struct {
	Operator      string    `json:"operator"`
	RoundNumber   uint64    `json:"round_number"`
	EntrantCount  int       `json:"entrant_count"`
	PoolWei       string    `json:"pool_wei"`
	Pool          string    `json:"pool"`
	MinimumStake  string    `json:"minimum_stake_wei"`
	RoundOpenedAt time.Time `json:"round_opened_at"`
}

type entryResponse struct {
	RoundNumber uint64 `json:"round_number"`
	Position    int    `json:"position"`
	Entrant     string `json:"entrant"`
	StakeWei    string `json:"stake_wei"`
	PoolWei     string `json:"pool_wei"`
	BalanceWei  string `json:"balance_wei"`
}

type drawResponse struct {
	RoundNumber   uint64    `json:"round_number"`
	Operator      string    `json:"operator"`
	Winner        string    `json:"winner"`
	WinnerIndex   int       `json:"winner_index"`
	EntrantCount  int       `json:"entrant_count"`
	PayoutWei     string    `json:"payout_wei"`
	Payout        string    `json:"payout"`
	Seed          string    `json:"seed"`
	Timestamp     uint64    `json:"timestamp"`
	SelectionHash string    `json:"selection_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

type pickWinnerResponse struct {
	Draw             drawResponse `json:"draw"`
	WinnerBalanceWei string       `json:"winner_balance_wei"`
	NextRoundNumber  uint64       `json:"next_round_number"`
}

type drawDetailResponse struct {
	Draw     drawResponse `json:"draw"`
	Entrants []string     `json:"entrants"`
	Verified bool         `json:"verified"`
}

type accountResponse struct {
	Address    string    `json:"address"`
	BalanceWei string    `json:"balance_wei"`
	Balance    string    `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type historyResponse struct {
	TransactionType entities.TransactionType `json:"transaction_type"`
	BalanceBefore   string                   `json:"balance_before_wei"`
	BalanceAfter    string                   `json:"balance_after_wei"`
	ChangeAmount    string                   `json:"change_amount_wei"`
	RoundNumber     *uint64                  `json:"round_number,omitempty"`
	Metadata        map[string]any           `json:"metadata,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Healthy(r.Context()); err != nil {
			respondWithError(w, "", err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	respondWithSuccess(w, "OK", nil)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	var info *interfaces.LedgerInfo
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		info, err = s.lotteryService(uow).GetLedgerInfo(r.Context())
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "", ledgerResponse{
		Operator:      info.Operator.Hex(),
		RoundNumber:   info.RoundNumber,
		EntrantCount:  info.EntrantCount,
		PoolWei:       info.Pool.Dec(),
		Pool:          utils.FormatEther(info.Pool),
		MinimumStake:  entities.MinimumStake().Dec(),
		RoundOpenedAt: info.RoundOpenedAt,
	})
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "", "Invalid request body", http.StatusBadRequest)
		return
	}
	stake, err := req.Amount()
	if err != nil {
		respondWithError(w, string(ledger.CodeInvalidAmount), err.Error(), http.StatusBadRequest)
		return
	}

	var result *interfaces.EntryResult
	err = s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = s.lotteryService(uow).Enter(r.Context(), caller, stake)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "Entry accepted", entryResponse{
		RoundNumber: result.Entry.RoundNumber,
		Position:    result.Entry.Position,
		Entrant:     result.Entry.Entrant.Hex(),
		StakeWei:    result.Entry.Stake.Dec(),
		PoolWei:     result.Pool.Dec(),
		BalanceWei:  result.Balance.Dec(),
	})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var players []common.Address
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		players, err = s.lotteryService(uow).GetPlayers(r.Context(), caller)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "", addressStrings(players))
}

func (s *Server) handlePickWinner(w http.ResponseWriter, r *http.Request, caller common.Address) {
	var result *interfaces.PickWinnerResult
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		result, err = s.lotteryService(uow).PickWinner(r.Context(), caller)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	balance := "0"
	if result.WinnerBalance != nil {
		balance = result.WinnerBalance.Dec()
	}

	respondWithSuccess(w, "Winner picked", pickWinnerResponse{
		Draw:             newDrawResponse(result.Draw),
		WinnerBalanceWei: balance,
		NextRoundNumber:  result.NextRound.Number,
	})
}

func (s *Server) handleRecentDraws(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	var draws []*entities.Draw
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		draws, err = s.lotteryService(uow).RecentDraws(r.Context(), limit)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	data := make([]drawResponse, 0, len(draws))
	for _, d := range draws {
		data = append(data, newDrawResponse(d))
	}
	respondWithSuccess(w, "", data)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.ParseUint(r.PathValue("round"), 10, 64)
	if err != nil {
		respondWithError(w, "", "round must be a positive integer", http.StatusBadRequest)
		return
	}

	var detail *interfaces.DrawDetail
	err = s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		detail, err = s.lotteryService(uow).GetDraw(r.Context(), round)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "", drawDetailResponse{
		Draw:     newDrawResponse(detail.Draw),
		Entrants: addressStrings(detail.Entrants),
		Verified: detail.Verified,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}

	var account *entities.Account
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		account, err = s.accountService(uow).GetAccount(r.Context(), address)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "", newAccountResponse(account))
}

func (s *Server) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	address, ok := pathAddress(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	var history []*entities.BalanceHistory
	err := s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		history, err = s.accountService(uow).GetHistory(r.Context(), address, limit)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	data := make([]historyResponse, 0, len(history))
	for _, h := range history {
		data = append(data, historyResponse{
			TransactionType: h.TransactionType,
			BalanceBefore:   h.BalanceBefore.Dec(),
			BalanceAfter:    h.BalanceAfter.Dec(),
			ChangeAmount:    h.ChangeAmount.String(),
			RoundNumber:     h.RoundNumber,
			Metadata:        h.TransactionMetadata,
			CreatedAt:       h.CreatedAt,
		})
	}
	respondWithSuccess(w, "", data)
}

// handleDeposit credits an account. Operator only.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, caller common.Address) {
	if caller != s.operator {
		respondWithLedgerError(w, ledger.ErrUnauthorized)
		return
	}

	address, ok := pathAddress(w, r)
	if !ok {
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "", "Invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := req.Amount()
	if err != nil {
		respondWithError(w, string(ledger.CodeInvalidAmount), err.Error(), http.StatusBadRequest)
		return
	}

	var account *entities.Account
	err = s.withUnitOfWork(r.Context(), func(uow interfaces.UnitOfWork) error {
		var err error
		account, err = s.accountService(uow).Fund(r.Context(), address, amount)
		return err
	})
	if err != nil {
		respondWithLedgerError(w, err)
		return
	}

	respondWithSuccess(w, "Deposit credited", newAccountResponse(account))
}

func pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.PathValue("address")
	if !common.IsHexAddress(raw) {
		respondWithError(w, "", "address must be a 20-byte hex address", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// queryLimit reads the optional ?limit= parameter. Zero means the service default.
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, "", "limit must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

func newDrawResponse(d *entities.Draw) drawResponse {
	seed := "0x0"
	if d.Seed != nil {
		seed = d.Seed.Hex()
	}
	return drawResponse{
		RoundNumber:   d.RoundNumber,
		Operator:      d.Operator.Hex(),
		Winner:        d.Winner.Hex(),
		WinnerIndex:   d.WinnerIndex,
		EntrantCount:  d.EntrantCount,
		PayoutWei:     d.Payout.Dec(),
		Payout:        utils.FormatEther(d.Payout),
		Seed:          seed,
		Timestamp:     d.Timestamp,
		SelectionHash: d.SelectionHash.Hex(),
		CreatedAt:     d.CreatedAt,
	}
}

func newAccountResponse(a *entities.Account) accountResponse {
	return accountResponse{
		Address:    a.Address.Hex(),
		BalanceWei: a.Balance.Dec(),
		Balance:    utils.FormatEther(a.Balance),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func addressStrings(addresses []common.Address) []string {
	out := make([]string, len(addresses))
	for i, a := range addresses {
		out[i] = a.Hex()
	}
	return out
}

// statusFor maps ledger errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientStake), errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrDrawNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNoEntrants), errors.Is(err, ledger.ErrPoolOverflow), errors.Is(err, ledger.ErrOperatorMismatch):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrNotDeployed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithLedgerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Lottery API request failed")
		message = "internal error"
	}
	respondWithError(w, string(ledger.CodeOf(err)), message, status)
}

func respondWithSuccess(w http.ResponseWriter, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Response{
		Success: true,
		Message: message,
		Data:    data,
	}); err != nil {
		log.WithError(err).Warn("Failed to write API response")
	}
}

func respondWithError(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(Response{
		Success: false,
		Code:    code,
		Error:   message,
	}); err != nil {
		log.WithError(err).Warn("Failed to write API response")
	}
}
