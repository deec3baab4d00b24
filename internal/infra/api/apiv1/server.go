package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hookstudio/internal/domain"
	"hookstudio/internal/domain/model"
	"hookstudio/internal/infra/api"
	"hookstudio/internal/infra/logging"
	red "hookstudio/internal/infra/redis"
	"hookstudio/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Limiter caps redemption attempts per account.
type Limiter interface {
	Attempt(ctx context.Context, accountID string) (red.RedeemBudget, error)
}

type Options struct {
	Verifier    *api.Verifier
	InternalKey string
	Limiter     Limiter          // optional
	Now         func() time.Time // defaults to time.Now
}

type Server struct {
	ledger       usecase.LedgerUseCase
	streaks      usecase.StreakUseCase
	achievements usecase.AchievementUseCase
	redemption   usecase.RedemptionUseCase
	activity     usecase.ActivityUseCase

	opts Options
	log  *zerolog.Logger
}

func NewServer(
	ledger usecase.LedgerUseCase,
	streaks usecase.StreakUseCase,
	achievements usecase.AchievementUseCase,
	redemption usecase.RedemptionUseCase,
	activity usecase.ActivityUseCase,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		ledger:       ledger,
		streaks:      streaks,
		achievements: achievements,
		redemption:   redemption,
		activity:     activity,
		opts:         opts,
		log:          logger,
	}
}

// RegisterAPIV1 mounts every route under absolute /api/v1 paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(api.RequireSession(s.opts.Verifier))
			r.Get("/me/account", s.getAccount)
			r.Get("/me/streak", s.getStreak)
			r.Get("/me/achievements", s.listAchievements)
			r.Post("/me/redeem", s.redeem)
		})
		r.Route("/internal", func(r chi.Router) {
			r.Use(api.RequireInternalKey(s.opts.InternalKey))
			r.Post("/accounts", s.ensureAccount)
			r.Get("/accounts/{id}/quota", s.checkQuota)
			r.Post("/accounts/{id}/spend", s.spendCoins)
			r.Post("/accounts/{id}/achievements/{aid}", s.grantAchievement)
			r.Post("/usage", s.recordUsage)
			r.Post("/activity", s.recordActivity)
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ---- session routes ----

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.GetAccount(r.Context(), api.AccountIDFrom(r.Context()), s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.streaks.GetStatus(r.Context(), api.AccountIDFrom(r.Context()), s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listAchievements(w http.ResponseWriter, r *http.Request) {
	view, err := s.achievements.List(r.Context(), api.AccountIDFrom(r.Context()), s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type RedeemRequest struct {
	Code string `json:"code"`
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := api.AccountIDFrom(ctx)

	if s.opts.Limiter != nil {
		budget, err := s.opts.Limiter.Attempt(ctx, accountID)
		switch {
		case err != nil:
			l := logging.With(ctx, s.log)
			l.Warn().Err(err).Msg("redeem rate limiter unavailable, allowing")
		case !budget.Allowed:
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(budget.RetryAfter.Seconds()))))
			s.writeError(w, r, domain.ErrRateLimited)
			return
		case budget.Remaining >= 0:
			w.Header().Set("X-Redeem-Attempts-Remaining", strconv.Itoa(budget.Remaining))
		}
	}

	var req RedeemRequest
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	res, err := s.redemption.Redeem(ctx, accountID, req.Code, s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- internal routes ----

type EnsureAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) ensureAccount(w http.ResponseWriter, r *http.Request) {
	var req EnsureAccountRequest
	if err := decode(r, &req); err != nil || req.AccountID == "" {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	view, err := s.ledger.EnsureAccount(r.Context(), req.AccountID, s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) checkQuota(w http.ResponseWriter, r *http.Request) {
	kind := model.UsageKind(r.URL.Query().Get("kind"))
	if !kind.Valid() {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	if err := s.ledger.CheckQuota(r.Context(), chi.URLParam(r, "id"), kind, s.opts.Now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SpendRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) spendCoins(w http.ResponseWriter, r *http.Request) {
	var req SpendRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	view, err := s.ledger.SpendCoins(r.Context(), chi.URLParam(r, "id"), req.Amount, s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) grantAchievement(w http.ResponseWriter, r *http.Request) {
	u, created, err := s.achievements.Grant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "aid"), s.opts.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, u)
}

type UsageRequest struct {
	AccountID  string          `json:"account_id"`
	Kind       model.UsageKind `json:"kind"`
	Tokens     int64           `json:"tokens"`
	CostMicros int64           `json:"cost_micros"`
	Content    string          `json:"content,omitempty"`
	At         *time.Time      `json:"at,omitempty"`
}

func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req UsageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	out, err := s.activity.RecordGeneration(r.Context(), usecase.GenerationEvent{
		AccountID:  req.AccountID,
		Kind:       req.Kind,
		Tokens:     req.Tokens,
		CostMicros: req.CostMicros,
		Content:    req.Content,
		At:         s.eventTime(req.At),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type ActivityRequest struct {
	AccountID string     `json:"account_id"`
	Source    string     `json:"source"`
	At        *time.Time `json:"at,omitempty"`
}

func (s *Server) recordActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	out, err := s.activity.RecordEngagement(r.Context(), req.AccountID, req.Source, s.eventTime(req.At))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) eventTime(at *time.Time) time.Time {
	if at == nil || at.IsZero() {
		return s.opts.Now()
	}
	return *at
}

// ---- helpers ----

type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRedemptionInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded), errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, ErrorResponse{Error: domain.Reason(err)})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
