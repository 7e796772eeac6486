// Package league implements create/lookup/join operations over the shared
// collection of league records, including unique join-code allocation and
// the league-scoped point mirror.
package league

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-league-service/internal/domain"
	"trivia-league-service/internal/gateway"
)

// defaultCodeAttempts bounds join-code regeneration before Create gives up
// with ErrCodeExhausted.
const defaultCodeAttempts = 5

// errCodeTaken aborts a create transaction when the drawn code is already
// claimed; the caller regenerates and retries.
var errCodeTaken = errors.New("join code taken")

// Directory mediates all league and membership mutations through gateway
// transactions, giving serializable-per-document semantics for concurrent
// creates and joins.
type Directory struct {
	store        gateway.Store
	attempts     int
	codeAttempts int
	now          func() time.Time
	newID        func() string
	logger       *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a Directory, mostly for deterministic tests.
type Option func(*Directory)

// WithRand injects the join-code randomness source.
func WithRand(rnd *rand.Rand) Option {
	return func(d *Directory) { d.rnd = rnd }
}

// WithIDGenerator replaces league ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(d *Directory) { d.newID = fn }
}

// WithCodeAttempts bounds code regeneration on collision.
func WithCodeAttempts(n int) Option {
	return func(d *Directory) { d.codeAttempts = n }
}

func NewDirectory(store gateway.Store, txAttempts int, logger *slog.Logger, opts ...Option) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Directory{
		store:        store,
		attempts:     txAttempts,
		codeAttempts: defaultCodeAttempts,
		now:          time.Now,
		newID:        uuid.NewString,
		logger:       logger,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create registers a new league owned by ownerID, with the creator as its
// first member. Private leagues get a unique join code; collisions
// regenerate up to the attempt bound and then fail with ErrCodeExhausted.
func (d *Directory) Create(ctx context.Context, ownerID, name, description string, isPrivate bool) (domain.League, error) {
	lg := domain.League{
		ID:          d.newID(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		IsPrivate:   isPrivate,
		MemberCount: 1,
		CreatedAt:   d.now(),
	}

	if !isPrivate {
		if err := d.insert(ctx, lg); err != nil {
			return domain.League{}, err
		}
		return lg, nil
	}

	for i := 0; i < d.codeAttempts; i++ {
		d.mu.Lock()
		lg.JoinCode = newJoinCode(d.rnd)
		d.mu.Unlock()

		err := d.insert(ctx, lg)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return domain.League{}, err
		}
		return lg, nil
	}
	return domain.League{}, fmt.Errorf("%w after %d attempts", domain.ErrCodeExhausted, d.codeAttempts)
}

// insert writes the league, its owner membership and both indexes in one
// transaction. For private leagues the code index doc is the uniqueness
// claim: reading it absent and committing are atomic, so two concurrent
// creates can never both own the same code.
func (d *Directory) insert(ctx context.Context, lg domain.League) error {
	leagueKey := gateway.LeagueKey(lg.ID)
	memberKey := gateway.MembershipKey(lg.ID, lg.OwnerID)
	ownerLeaguesKey := gateway.UserLeaguesKey(lg.OwnerID)
	keys := []string{leagueKey, memberKey, ownerLeaguesKey, gateway.LeagueIndexKey}

	var codeKey string
	if lg.IsPrivate {
		codeKey = gateway.LeagueCodeKey(lg.JoinCode)
		keys = append(keys, codeKey)
	}

	return gateway.TransactWithRetry(ctx, d.store, d.attempts, keys, func(tx gateway.Tx) error {
		if codeKey != "" {
			var claimed string
			err := tx.Get(codeKey, &claimed)
			if err == nil {
				return errCodeTaken
			}
			if !errors.Is(err, gateway.ErrKeyNotFound) {
				return fmt.Errorf("check code: %w", err)
			}
			tx.Set(codeKey, lg.ID)
		}

		var index []string
		if err := tx.Get(gateway.LeagueIndexKey, &index); err != nil && !errors.Is(err, gateway.ErrKeyNotFound) {
			return fmt.Errorf("read index: %w", err)
		}
		tx.Set(gateway.LeagueIndexKey, append(index, lg.ID))

		var owned []string
		if err := tx.Get(ownerLeaguesKey, &owned); err != nil && !errors.Is(err, gateway.ErrKeyNotFound) {
			return fmt.Errorf("read owner leagues: %w", err)
		}
		tx.Set(ownerLeaguesKey, append(owned, lg.ID))

		tx.Set(leagueKey, lg)
		tx.Set(memberKey, domain.Membership{
			UserID:   lg.OwnerID,
			LeagueID: lg.ID,
			IsOwner:  true,
		})
		return nil
	})
}

// FindByCode resolves a private league by join code, case-insensitively.
// A miss is the normal ErrNotFound result, never a hard error; blank input
// is rejected the same way.
func (d *Directory) FindByCode(ctx context.Context, code string) (domain.League, error) {
	code = NormalizeCode(code)
	if code == "" {
		return domain.League{}, domain.ErrNotFound
	}

	var leagueID string
	err := d.store.Get(ctx, gateway.LeagueCodeKey(code), &leagueID)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return domain.League{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("resolve code: %w", err)
	}

	lg, err := d.Get(ctx, leagueID)
	if err != nil {
		return domain.League{}, err
	}
	if !lg.IsPrivate {
		return domain.League{}, domain.ErrNotFound
	}
	return lg, nil
}

// Get reads one league record.
func (d *Directory) Get(ctx context.Context, leagueID string) (domain.League, error) {
	var lg domain.League
	err := d.store.Get(ctx, gateway.LeagueKey(leagueID), &lg)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return domain.League{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.League{}, fmt.Errorf("read league: %w", err)
	}
	return lg, nil
}

// Join adds userID to the league. The member-count increment and the
// membership insert commit atomically, so two users joining concurrently
// both land and the count advances by exactly two. Joining twice yields
// ErrAlreadyMember.
func (d *Directory) Join(ctx context.Context, userID, leagueID string) (domain.League, error) {
	leagueKey := gateway.LeagueKey(leagueID)
	memberKey := gateway.MembershipKey(leagueID, userID)
	userLeaguesKey := gateway.UserLeaguesKey(userID)

	var lg domain.League
	err := gateway.TransactWithRetry(ctx, d.store, d.attempts, []string{leagueKey, memberKey, userLeaguesKey}, func(tx gateway.Tx) error {
		lg = domain.League{}
		if err := tx.Get(leagueKey, &lg); err != nil {
			if errors.Is(err, gateway.ErrKeyNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("read league: %w", err)
		}

		var existing domain.Membership
		err := tx.Get(memberKey, &existing)
		if err == nil {
			return domain.ErrAlreadyMember
		}
		if !errors.Is(err, gateway.ErrKeyNotFound) {
			return fmt.Errorf("read membership: %w", err)
		}

		lg.MemberCount++
		tx.Set(leagueKey, lg)
		tx.Set(memberKey, domain.Membership{
			UserID:   userID,
			LeagueID: leagueID,
		})

		var joined []string
		if err := tx.Get(userLeaguesKey, &joined); err != nil && !errors.Is(err, gateway.ErrKeyNotFound) {
			return fmt.Errorf("read user leagues: %w", err)
		}
		tx.Set(userLeaguesKey, append(joined, leagueID))
		return nil
	})
	if err != nil {
		return domain.League{}, err
	}
	return lg, nil
}

// Membership reads the (user, league) relation; ErrNotFound on miss.
func (d *Directory) Membership(ctx context.Context, userID, leagueID string) (domain.Membership, error) {
	var m domain.Membership
	err := d.store.Get(ctx, gateway.MembershipKey(leagueID, userID), &m)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return domain.Membership{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Membership{}, fmt.Errorf("read membership: %w", err)
	}
	return m, nil
}

// LeaguesOf lists the leagues the user belongs to, in join order.
func (d *Directory) LeaguesOf(ctx context.Context, userID string) ([]domain.League, error) {
	var ids []string
	err := d.store.Get(ctx, gateway.UserLeaguesKey(userID), &ids)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user leagues: %w", err)
	}

	leagues := make([]domain.League, 0, len(ids))
	for _, id := range ids {
		lg, err := d.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		leagues = append(leagues, lg)
	}
	return leagues, nil
}

// SearchPublic returns a lazy, restartable sequence of public leagues whose
// name or description contains the query, case-insensitively, in insertion
// order. The linear scan over the directory index is a known scalability
// limit; a full deployment would push this down to an indexed store query.
func (d *Directory) SearchPublic(ctx context.Context, query string) iter.Seq[domain.League] {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(domain.League) bool) {
		var ids []string
		if err := d.store.Get(ctx, gateway.LeagueIndexKey, &ids); err != nil {
			if !errors.Is(err, gateway.ErrKeyNotFound) {
				d.logger.Warn("league index read failed", "error", err)
			}
			return
		}
		for _, id := range ids {
			lg, err := d.Get(ctx, id)
			if err != nil {
				continue
			}
			if lg.IsPrivate {
				continue
			}
			if q != "" &&
				!strings.Contains(strings.ToLower(lg.Name), q) &&
				!strings.Contains(strings.ToLower(lg.Description), q) {
				continue
			}
			if !yield(lg) {
				return
			}
		}
	}
}

// MirrorPoints applies a reconciled score delta to every league the user
// belongs to: the league aggregate and the member's contributed score move
// together, one transaction per league. Failures on one league do not stop
// the others; the joined error reports what is left to retry.
func (d *Directory) MirrorPoints(ctx context.Context, userID string, points int) error {
	if points <= 0 {
		return nil
	}
	var ids []string
	err := d.store.Get(ctx, gateway.UserLeaguesKey(userID), &ids)
	if errors.Is(err, gateway.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read user leagues: %w", err)
	}

	var errs []error
	for _, leagueID := range ids {
		if err := d.addPoints(ctx, userID, leagueID, points); err != nil {
			d.logger.Warn("league point mirror failed", "user", userID, "league", leagueID, "error", err)
			errs = append(errs, fmt.Errorf("league %s: %w", leagueID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Directory) addPoints(ctx context.Context, userID, leagueID string, points int) error {
	leagueKey := gateway.LeagueKey(leagueID)
	memberKey := gateway.MembershipKey(leagueID, userID)

	return gateway.TransactWithRetry(ctx, d.store, d.attempts, []string{leagueKey, memberKey}, func(tx gateway.Tx) error {
		var lg domain.League
		if err := tx.Get(leagueKey, &lg); err != nil {
			if errors.Is(err, gateway.ErrKeyNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		var m domain.Membership
		if err := tx.Get(memberKey, &m); err != nil {
			if errors.Is(err, gateway.ErrKeyNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		lg.PointsAggregate += points
		m.ContributedScore += points
		tx.Set(leagueKey, lg)
		tx.Set(memberKey, m)
		return nil
	})
}
