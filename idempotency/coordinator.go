// Package idempotency guarantees that a mutating request carrying a client
// token is executed at most once per token within the retention window.
//
// A token moves through three states: absent, claimed (in flight) and
// resolved (response stored). The claim is decided inside one transaction
// that holds a row lock on the token, so concurrent requests for the same
// token are serialized while unrelated tokens proceed in parallel.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/database"
	"virtualbank-gateway/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Claim is the outcome of a successful claim attempt. When Replay is set the
// stored response must be sent back verbatim and the handler must not run.
type Claim struct {
	Token       string
	Checksum    string
	Replay      bool
	Status      int
	Body        []byte
	ContentType string
	// Headers are the stored response headers to send with a replay.
	Headers map[string]string
}

type Coordinator struct {
	Store  *database.Store
	TTL    time.Duration
	Clock  Clock
	Logger *slog.Logger
}

func NewCoordinator(store *database.Store, ttl time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{Store: store, TTL: ttl, Clock: systemClock{}, Logger: logger}
}

type decision int

const (
	decisionClaim decision = iota
	decisionReclaim
	decisionInFlight
	decisionMismatch
	decisionReplay
)

// evaluate decides what to do with the current record for a token.
func evaluate(rec models.IdempotencyKey, found bool, checksum string, now time.Time) decision {
	switch {
	case !found:
		return decisionClaim
	case !rec.ExpiresAt.After(now):
		return decisionReclaim
	case rec.Checksum != checksum:
		return decisionMismatch
	case !rec.Resolved():
		return decisionInFlight
	default:
		return decisionReplay
	}
}

// Claim reserves token for the request identified by checksum, or reports
// why it cannot: ErrInFlightConflict while another request holds the claim,
// ErrChecksumMismatch when the token was used for a different request.
func (c *Coordinator) Claim(ctx context.Context, token, checksum string) (Claim, error) {
	result := Claim{Token: token, Checksum: checksum}
	inFlight := false

	err := c.Store.WithTx(ctx, func(tx *gorm.DB) error {
		now := c.now()
		// The second pass only happens when a concurrent insert won the race;
		// by then that row is committed and visible under the lock.
		for attempt := 0; attempt < 2; attempt++ {
			rec, found, err := database.LockIdempotencyKey(tx, token)
			if err != nil {
				return err
			}

			switch evaluate(rec, found, checksum, now) {
			case decisionReclaim:
				if err := database.DeleteIdempotencyKey(tx, token); err != nil {
					return err
				}
				c.Logger.Info("expired idempotency record reclaimed",
					"event", "idempotency_reclaimed",
					"module", "idempotency",
					"layer", "coordinator",
					"idempotency_key", token,
				)
				fallthrough
			case decisionClaim:
				inserted, err := database.InsertIdempotencyKey(tx, models.IdempotencyKey{
					Key:       token,
					Checksum:  checksum,
					ExpiresAt: now.Add(c.TTL),
				})
				if err != nil {
					return err
				}
				if inserted {
					return nil
				}
				continue
			case decisionInFlight:
				inFlight = true
				return nil
			case decisionMismatch:
				return apperrors.ErrChecksumMismatch
			case decisionReplay:
				result.Replay = true
				result.Status = *rec.ResponseStatus
				result.Body = rec.ResponseBody
				result.ContentType = rec.ContentType
				if len(rec.ResponseHeaders) > 0 {
					if err := json.Unmarshal(rec.ResponseHeaders, &result.Headers); err != nil {
						return fmt.Errorf("decode stored response headers: %w", err)
					}
				}
				return nil
			}
		}
		inFlight = true
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindChecksumMismatch {
			c.Logger.Warn("idempotency key reused with a different request",
				"event", "idempotency_checksum_mismatch",
				"module", "idempotency",
				"layer", "coordinator",
				"idempotency_key", token,
			)
		}
		return Claim{}, err
	}
	if inFlight {
		return Claim{}, apperrors.ErrInFlightConflict
	}
	return result, nil
}

// Resolve stores the final response of a claimed request, with headers to
// replay alongside it, and restarts the retention window. A claim that
// expired and was taken over by another request is not touched.
func (c *Coordinator) Resolve(ctx context.Context, claim Claim, status int, body []byte, contentType string, headers map[string]string) error {
	stored := make([]byte, len(body))
	copy(stored, body)
	var storedHeaders datatypes.JSON
	if len(headers) > 0 {
		raw, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("encode response headers: %w", err)
		}
		storedHeaders = raw
	}

	var ok bool
	err := c.Store.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		ok, err = database.ResolveIdempotencyKey(tx, claim.Token, claim.Checksum, status, stored, contentType, storedHeaders, c.now().Add(c.TTL))
		return err
	})
	if err != nil {
		return err
	}
	if !ok {
		c.Logger.Warn("idempotency claim no longer held at resolution",
			"event", "idempotency_resolve_missing",
			"module", "idempotency",
			"layer", "coordinator",
			"idempotency_key", claim.Token,
		)
	}
	return nil
}

// Release drops an unresolved claim so the token can be used again. It is
// only safe when the handler cannot have mutated anything.
func (c *Coordinator) Release(ctx context.Context, claim Claim) error {
	return c.Store.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := database.ReleaseIdempotencyKey(tx, claim.Token, claim.Checksum)
		return err
	})
}

func (c *Coordinator) now() time.Time {
	if c.Clock == nil {
		return time.Now().UTC()
	}
	return c.Clock.Now().UTC()
}
