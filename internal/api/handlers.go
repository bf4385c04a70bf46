package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/xtrntr/stocksim/internal/auth"
	"github.com/xtrntr/stocksim/internal/models"
	"github.com/xtrntr/stocksim/internal/portfolio"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Portfolio   *portfolio.Service
	AuthService *auth.AuthService
	Log         zerolog.Logger
}

// NewHandler creates a new handler
func NewHandler(svc *portfolio.Service, authService *auth.AuthService, log zerolog.Logger) *Handler {
	return &Handler{
		Portfolio:   svc,
		AuthService: authService,
		Log:         log.With().Str("component", "api").Logger(),
	}
}

// Routes builds the full router: public auth endpoints plus the
// JWT-protected trading surface.
func (h *Handler) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Get("/quote", h.Quote)
		r.Post("/buy", h.Buy)
		r.Post("/sell", h.Sell)
		r.Get("/portfolio", h.GetPortfolio)
		r.Get("/history", h.GetHistory)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain failures onto HTTP statuses. All business-rule
// rejections surface uniformly as 400; a conflict that survived its retry is
// 409; everything else is a generic 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrSymbolNotFound):
		writeError(w, http.StatusBadRequest, "stock not found")
	case errors.Is(err, models.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "not enough cash")
	case errors.Is(err, models.ErrInsufficientShares):
		writeError(w, http.StatusBadRequest, "not enough shares")
	case errors.Is(err, models.ErrConflict):
		writeError(w, http.StatusConflict, "trade conflicted with a concurrent request, try again")
	default:
		h.Log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseShares validates the raw share count from the request. Fractional or
// non-numeric input is rejected before any core logic runs.
func parseShares(raw string) (int64, error) {
	if raw == "" {
		return 0, models.NewValidationError("shares field required")
	}
	shares, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || shares <= 0 {
		return 0, models.NewValidationError("shares must be a positive integer")
	}
	return shares, nil
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string `json:"username"`
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Username, req.Password, req.Confirmation)
	if err != nil {
		if errors.Is(err, models.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "username is already used")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"cash":     user.Cash,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrIncorrectCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// JWTAuthMiddleware verifies JWT tokens and stores the user ID in the request
// context. Core operations never read ambient session state.
func (h *Handler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}

		userID, err := h.AuthService.UserFromToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(r *http.Request) (int, bool) {
	userID, ok := r.Context().Value(userIDKey).(int)
	return userID, ok
}

// Quote looks up the current price for a symbol
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromContext(r); !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	quote, err := h.Portfolio.Quote(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Buy executes a market buy for the authenticated user
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares string `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shares, err := parseShares(req.Shares)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	txn, err := h.Portfolio.Buy(r.Context(), userID, req.Symbol, shares)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// Sell executes a market sell for the authenticated user
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
		Shares string `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shares, err := parseShares(req.Shares)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	txn, err := h.Portfolio.Sell(r.Context(), userID, req.Symbol, shares)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// GetPortfolio returns the user's holdings valued at current prices
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.Portfolio.Portfolio(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetHistory returns one page of the user's transaction history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
		page = parsed
	}

	history, err := h.Portfolio.History(r.Context(), userID, page)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}
