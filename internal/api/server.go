package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ticket-exchange/internal/db"
	"ticket-exchange/internal/engine"
	"ticket-exchange/internal/escrow"
	"ticket-exchange/internal/ledger"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/refund"
	"ticket-exchange/internal/security"
	"ticket-exchange/internal/ticket"
	"ticket-exchange/internal/ws"
)

type Server struct {
	store   *db.Store
	ledger  *ledger.Ledger
	vault   *escrow.Vault
	refunds *refund.Service
	manager *engine.Manager
	dir     ticket.Directory
	hub     *ws.Hub
	limiter *security.RateLimiter
	secret  []byte
	log     *zap.SugaredLogger
}

func NewServer(store *db.Store, led *ledger.Ledger, vault *escrow.Vault, refunds *refund.Service,
	mgr *engine.Manager, dir ticket.Directory, hub *ws.Hub, limiter *security.RateLimiter,
	secret string, log *zap.SugaredLogger) *Server {
	return &Server{
		store:   store,
		ledger:  led,
		vault:   vault,
		refunds: refunds,
		manager: mgr,
		dir:     dir,
		hub:     hub,
		limiter: limiter,
		secret:  []byte(secret),
		log:     log.Named("api"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	// Auth (public)
	r.Post("/api/register", s.register)
	r.Post("/api/login", s.login)

	// WebSocket
	r.Get("/ws", s.hub.HandleWS)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Registry reads
		r.Get("/api/listings", s.listListings)
		r.Get("/api/listings/{contract}/{tokenID}", s.getListing)
		r.Get("/api/listings/{contract}/{tokenID}/auction", s.getAuction)
		r.Get("/api/events/{eventID}/balance", s.getBalance)
		r.Get("/api/tickets/{contract}/{tokenID}/refund-quote", s.refundQuote)

		// Settlement and housekeeping (not rate limited: pull-only,
		// idempotent-failing)
		r.Post("/api/listings/{contract}/{tokenID}/settle", s.settleAuction)
		r.Delete("/api/listings/{contract}/{tokenID}", s.cancelListing)
		r.Post("/api/listings", s.createListing)
		r.Post("/api/events/{eventID}/profits/collect", s.collectProfits)
		r.Post("/api/events/{eventID}/royalties/withdraw", s.withdrawRoyalties)
		r.Post("/api/events/{eventID}/emergency-refund/claim", s.claimEmergencyRefund)
		r.Post("/api/tickets/{contract}/{tokenID}/refund", s.refundTicket)

		// Fund-moving routes get the per-caller limiter
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/api/events/{eventID}/deposit", s.deposit)
			r.Post("/api/events/{eventID}/withdraw", s.withdraw)
			r.Post("/api/listings/{contract}/{tokenID}/buy", s.buyListing)
			r.Post("/api/listings/{contract}/{tokenID}/bids", s.placeBid)
		})

		// Issuer
		r.Group(func(r chi.Router) {
			r.Use(s.roleOnly(model.RoleIssuer, model.RoleAdmin))
			r.Post("/api/events/{eventID}/primary-sales", s.registerPrimarySale)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(s.roleOnly(model.RoleAdmin))
			r.Post("/api/events/{eventID}/end", s.endEvent)
			r.Post("/api/events/{eventID}/emergency-refund", s.enableEmergencyRefund)
			r.Post("/api/events/{eventID}/platform-fees/withdraw", s.withdrawPlatformFees)
			r.Post("/api/admin/verifications", s.upsertVerification)
			r.Get("/api/admin/events-log", s.listEventLog)
			r.Get("/api/admin/summary", s.summary)
		})
	})

	return r
}

// ── Auth ─────────────────────────────────────────────

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		jsonErr(w, 400, "email and password (min 6 chars) required", "BAD_REQUEST")
		return
	}
	role := model.RoleUser
	if req.Role == string(model.RoleIssuer) {
		role = model.RoleIssuer
	}

	existing, _ := s.store.GetUserByEmail(r.Context(), req.Email)
	if existing != nil {
		jsonErr(w, 409, "email already registered", "INVALID_STATE")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, 500, "hash failed", "INTERNAL")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, string(hash), role)
	if err != nil {
		jsonErr(w, 500, "create user failed", "INTERNAL")
		return
	}

	token := s.makeToken(user.ID, user.Role)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || user == nil {
		jsonErr(w, 401, "invalid credentials", "UNAUTHORIZED")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		jsonErr(w, 401, "invalid credentials", "UNAUTHORIZED")
		return
	}

	token := s.makeToken(user.ID, user.Role)
	json200(w, map[string]any{"user": user, "token": token})
}

func (s *Server) makeToken(userID string, role model.Role) string {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(72 * time.Hour).Unix(),
	}
	t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return t
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// CallerID names the authenticated caller for rate limiting.
func CallerID(r *http.Request) string {
	v, _ := r.Context().Value(ctxUserID).(string)
	return v
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonErr(w, 401, "missing token", "UNAUTHORIZED")
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			jsonErr(w, 401, "invalid token", "UNAUTHORIZED")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonErr(w, 401, "invalid claims", "UNAUTHORIZED")
			return
		}
		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) roleOnly(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(ctxRole).(string)
			for _, allowed := range roles {
				if role == string(allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}
			jsonErr(w, 403, "insufficient role", "UNAUTHORIZED")
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Ledger ───────────────────────────────────────────

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	bal, err := s.ledger.Balance(r.Context(), uid, event)
	if err != nil {
		writeErr(w, err)
		return
	}
	info, err := s.ledger.EventInfo(r.Context(), event)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"balance": bal, "event": info})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	bal, err := s.ledger.Deposit(r.Context(), uid, event, req.Amount)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, bal)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	if err := s.ledger.Withdraw(r.Context(), uid, event, req.Amount); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "withdrawn", "amount": req.Amount})
}

func (s *Server) collectProfits(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	amount, err := s.ledger.CollectProfits(r.Context(), uid, event)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "collected", "amount": amount})
}

func (s *Server) endEvent(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "eventID")
	if err := s.ledger.EndEvent(r.Context(), event); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "ended"})
}

// ── Escrow / fees ────────────────────────────────────

func (s *Server) registerPrimarySale(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "eventID")
	var req struct {
		Buyer             string `json:"buyer"`
		Value             int64  `json:"value"`
		OrganizerShareBps int64  `json:"organizer_share_bps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	if req.Buyer == "" {
		jsonErr(w, 400, "buyer required", "BAD_REQUEST")
		return
	}
	ev, err := s.dir.Event(r.Context(), event)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ev == nil {
		writeErr(w, fmt.Errorf("%w: event %s", model.ErrNotFound, event))
		return
	}
	if err := s.vault.RegisterPrimarySale(r.Context(), req.Buyer, ev.Organizer, event, req.Value, req.OrganizerShareBps); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "registered"})
}

func (s *Server) withdrawRoyalties(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	amount, err := s.vault.WithdrawRoyalties(r.Context(), uid, event)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "withdrawn", "amount": amount})
}

func (s *Server) withdrawPlatformFees(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "eventID")
	var req struct {
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	if req.Destination == "" {
		jsonErr(w, 400, "destination required", "BAD_REQUEST")
		return
	}
	amount, err := s.vault.WithdrawPlatformFees(r.Context(), req.Destination, event)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "withdrawn", "amount": amount})
}

func (s *Server) enableEmergencyRefund(w http.ResponseWriter, r *http.Request) {
	event := chi.URLParam(r, "eventID")
	if err := s.vault.EnableEmergencyRefund(r.Context(), event); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "enabled"})
}

func (s *Server) claimEmergencyRefund(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	event := chi.URLParam(r, "eventID")
	amount, err := s.vault.ClaimEmergencyRefund(r.Context(), uid, event)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "refunded", "amount": amount})
}

// ── Listings ─────────────────────────────────────────

func tokenParams(r *http.Request) (string, int64, error) {
	contract := chi.URLParam(r, "contract")
	tokenID, err := strconv.ParseInt(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid token id")
	}
	return contract, tokenID, nil
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.store.ListActiveListings(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	json200(w, listings)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	l, err := s.store.GetListing(r.Context(), contract, tokenID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if l == nil {
		jsonErr(w, 404, "listing not found", "NOT_FOUND")
		return
	}
	json200(w, l)
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	a, err := s.store.GetAuction(r.Context(), contract, tokenID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if a == nil {
		jsonErr(w, 404, "auction not found", "NOT_FOUND")
		return
	}
	json200(w, a)
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	var req engine.CreateListingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	l, err := s.manager.CreateListing(r.Context(), uid, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(l)
}

func (s *Server) buyListing(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	eng := s.manager.Engine(contract, tokenID)
	if eng == nil {
		jsonErr(w, 404, "listing not found", "NOT_FOUND")
		return
	}
	sale, err := eng.Buy(uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, sale)
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	eng := s.manager.Engine(contract, tokenID)
	if eng == nil {
		jsonErr(w, 404, "listing not found", "NOT_FOUND")
		return
	}
	if err := eng.PlaceBid(uid, req.Amount); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"status": "accepted", "amount": req.Amount})
}

func (s *Server) settleAuction(w http.ResponseWriter, r *http.Request) {
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	eng := s.manager.Engine(contract, tokenID)
	if eng == nil {
		jsonErr(w, 404, "listing not found", "NOT_FOUND")
		return
	}
	res, err := eng.Settle()
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]any{"winner": res.Winner, "amount": res.Amount})
}

func (s *Server) cancelListing(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	eng := s.manager.Engine(contract, tokenID)
	if eng == nil {
		jsonErr(w, 404, "listing not found", "NOT_FOUND")
		return
	}
	if err := eng.Cancel(uid); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

// ── Refunds ──────────────────────────────────────────

func (s *Server) refundQuote(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	q, err := s.refunds.QuoteRefund(r.Context(), uid, contract, tokenID)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, q)
}

func (s *Server) refundTicket(w http.ResponseWriter, r *http.Request) {
	uid := r.Context().Value(ctxUserID).(string)
	contract, tokenID, err := tokenParams(r)
	if err != nil {
		jsonErr(w, 400, err.Error(), "BAD_REQUEST")
		return
	}
	q, err := s.refunds.Execute(r.Context(), uid, contract, tokenID)
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, q)
}

// ── Admin ────────────────────────────────────────────

func (s *Server) upsertVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Active  bool   `json:"active"`
		Level   int    `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, 400, "invalid json", "BAD_REQUEST")
		return
	}
	if req.Account == "" {
		jsonErr(w, 400, "account required", "BAD_REQUEST")
		return
	}
	if err := s.store.UpsertVerification(r.Context(), req.Account, req.Active, req.Level); err != nil {
		writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "ok"})
}

func (s *Server) listEventLog(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	var key *string
	if k := r.URL.Query().Get("listing_key"); k != "" {
		key = &k
	}
	events, err := s.store.ListEvents(r.Context(), key, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if events == nil {
		events = []model.EventLog{}
	}
	json200(w, events)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.GetSummary(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	json200(w, sum)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		jsonErr(w, 503, "database unreachable", "UNAVAILABLE")
		return
	}
	json200(w, map[string]string{"status": "ok"})
}

// ── Helpers ──────────────────────────────────────────

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, code int, msg, codeStr string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": codeStr})
}

// writeErr maps the error taxonomy onto distinct HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		jsonErr(w, http.StatusForbidden, err.Error(), "UNAUTHORIZED")
	case errors.Is(err, model.ErrInsufficientFunds):
		jsonErr(w, http.StatusPaymentRequired, err.Error(), "INSUFFICIENT_FUNDS")
	case errors.Is(err, model.ErrNotFound):
		jsonErr(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, model.ErrInvalidState):
		jsonErr(w, http.StatusConflict, err.Error(), "INVALID_STATE")
	case errors.Is(err, model.ErrTiming):
		jsonErr(w, http.StatusTooEarly, err.Error(), "TIMING")
	case errors.Is(err, model.ErrLimitExceeded):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error(), "LIMIT_EXCEEDED")
	case errors.Is(err, model.ErrReentrancy):
		jsonErr(w, http.StatusLocked, err.Error(), "REENTRANCY")
	case errors.Is(err, model.ErrTransferFailed):
		jsonErr(w, http.StatusBadGateway, err.Error(), "TRANSFER_FAILED")
	case errors.Is(err, model.ErrOverflow):
		jsonErr(w, http.StatusInternalServerError, err.Error(), "OVERFLOW")
	default:
		jsonErr(w, http.StatusInternalServerError, "internal error", "INTERNAL")
	}
}
