package http

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trivia-league-service/internal/domain"
)

// defaultLeaderboardSize caps leaderboard reads when the client does not
// ask for a specific size.
const defaultLeaderboardSize = 50

// searchResultCap bounds how much of the lazy search sequence a single
// request consumes.
const searchResultCap = 100

// Identity resolves the calling user from a request. The identity provider
// itself (tokens, sessions) is an external collaborator; the default
// implementation trusts the X-User-ID header.
type Identity func(r *http.Request) (userID string, ok bool)

// HeaderIdentity reads the user from the X-User-ID header.
func HeaderIdentity(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	return id, id != ""
}

// LeagueDirectory is the directory surface the API serves.
type LeagueDirectory interface {
	Create(ctx context.Context, ownerID, name, description string, isPrivate bool) (domain.League, error)
	FindByCode(ctx context.Context, code string) (domain.League, error)
	Get(ctx context.Context, leagueID string) (domain.League, error)
	Join(ctx context.Context, userID, leagueID string) (domain.League, error)
	LeaguesOf(ctx context.Context, userID string) ([]domain.League, error)
	SearchPublic(ctx context.Context, query string) iter.Seq[domain.League]
}

// ProfileReader serves the durable per-user profile.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (domain.UserProfile, error)
}

// Board serves the observed global ranking.
type Board interface {
	Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// ActiveLister serves the currently playable quiz listing.
type ActiveLister interface {
	Active() []domain.QuizSummary
}

// API is the REST surface: leagues, profiles, leaderboard and the active
// quiz listing.
type API struct {
	directory LeagueDirectory
	profiles  ProfileReader
	board     Board
	quizzes   ActiveLister
	identity  Identity
	logger    *slog.Logger
}

func NewAPI(directory LeagueDirectory, profiles ProfileReader, board Board, quizzes ActiveLister, identity Identity, logger *slog.Logger) *API {
	if identity == nil {
		identity = HeaderIdentity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		directory: directory,
		profiles:  profiles,
		board:     board,
		quizzes:   quizzes,
		identity:  identity,
		logger:    logger,
	}
}

// Router mounts all REST routes.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/quizzes/active", a.activeQuizzes)
		r.Get("/leaderboard", a.leaderboard)
		r.Get("/profile", a.profile)

		r.Route("/leagues", func(r chi.Router) {
			r.Get("/", a.searchLeagues)
			r.Post("/", a.createLeague)
			r.Get("/mine", a.myLeagues)
			r.Get("/code/{code}", a.leagueByCode)
			r.Get("/{leagueID}", a.league)
			r.Post("/{leagueID}/join", a.joinLeague)
		})
	})
	return r
}

func (a *API) activeQuizzes(w http.ResponseWriter, r *http.Request) {
	summaries := a.quizzes.Active()
	if summaries == nil {
		summaries = []domain.QuizSummary{}
	}
	a.writeJSON(w, http.StatusOK, summaries)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= defaultLeaderboardSize {
			limit = n
		}
	}
	entries, err := a.board.Top(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.identity(r)
	if !ok {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}
	profile, err := a.profiles.Profile(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, profile)
}

type createLeagueRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

func (a *API) createLeague(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.identity(r)
	if !ok {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}
	var req createLeagueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "league name required", http.StatusBadRequest)
		return
	}
	lg, err := a.directory.Create(r.Context(), userID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, lg)
}

func (a *API) league(w http.ResponseWriter, r *http.Request) {
	lg, err := a.directory.Get(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, lg)
}

func (a *API) leagueByCode(w http.ResponseWriter, r *http.Request) {
	lg, err := a.directory.FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, lg)
}

func (a *API) joinLeague(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.identity(r)
	if !ok {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}
	lg, err := a.directory.Join(r.Context(), userID, chi.URLParam(r, "leagueID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, lg)
}

func (a *API) myLeagues(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.identity(r)
	if !ok {
		http.Error(w, "identity required", http.StatusUnauthorized)
		return
	}
	leagues, err := a.directory.LeaguesOf(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if leagues == nil {
		leagues = []domain.League{}
	}
	a.writeJSON(w, http.StatusOK, leagues)
}

func (a *API) searchLeagues(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	results := make([]domain.League, 0, 16)
	for lg := range a.directory.SearchPublic(r.Context(), query) {
		results = append(results, lg)
		if len(results) >= searchResultCap {
			break
		}
	}
	a.writeJSON(w, http.StatusOK, results)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("response encode failed", "error", err)
	}
}

// writeError maps domain outcomes onto HTTP statuses: conflicts are 409,
// misses 404, a blown sync budget 503.
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsConflict(err):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrQuizNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSyncFailed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		a.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
