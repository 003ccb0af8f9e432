package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"virtualbank-gateway/apperrors"
	"virtualbank-gateway/database"
	"virtualbank-gateway/models"
	"virtualbank-gateway/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestIdempotencyKeyLifecycle(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.WithTx(ctx, func(tx *gorm.DB) error {
		if _, found, err := database.LockIdempotencyKey(tx, "tok-1"); err != nil || found {
			t.Fatalf("expected no record, found=%v err=%v", found, err)
		}
		inserted, err := database.InsertIdempotencyKey(tx, models.IdempotencyKey{
			Key: "tok-1", Checksum: "abc", ExpiresAt: now.Add(time.Minute),
		})
		if err != nil || !inserted {
			t.Fatalf("expected insert, inserted=%v err=%v", inserted, err)
		}
		inserted, err = database.InsertIdempotencyKey(tx, models.IdempotencyKey{
			Key: "tok-1", Checksum: "other", ExpiresAt: now.Add(time.Minute),
		})
		if err != nil || inserted {
			t.Fatalf("expected duplicate insert to be ignored, inserted=%v err=%v", inserted, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("claim tx: %v", err)
	}

	ok, err := database.ResolveIdempotencyKey(store.DB, "tok-1", "abc", 202, []byte(`{"ok":true}`), "application/json", nil, now.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}

	rec, found, err := database.LockIdempotencyKey(store.DB, "tok-1")
	if err != nil || !found {
		t.Fatalf("reload: found=%v err=%v", found, err)
	}
	if !rec.Resolved() || *rec.ResponseStatus != 202 || string(rec.ResponseBody) != `{"ok":true}` {
		t.Fatalf("unexpected resolved record %+v", rec)
	}

	released, err := database.ReleaseIdempotencyKey(store.DB, "tok-1", "abc")
	if err != nil || released {
		t.Fatalf("resolved records must not be released, released=%v err=%v", released, err)
	}

	ok, err = database.ResolveIdempotencyKey(store.DB, "tok-1", "abc", 500, []byte(`{}`), "application/json", nil, now.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("resolved records must not be resolved again, ok=%v err=%v", ok, err)
	}
}

func TestResolveIdempotencyKeyRequiresMatchingClaim(t *testing.T) {
	store := testutil.NewStore(t)
	exp := time.Now().UTC().Add(time.Minute)
	if _, err := database.InsertIdempotencyKey(store.DB, models.IdempotencyKey{Key: "k", Checksum: "c2", ExpiresAt: exp}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err := database.ResolveIdempotencyKey(store.DB, "k", "c1", 202, []byte(`{}`), "application/json", nil, exp)
	if err != nil || ok {
		t.Fatalf("resolve with another checksum must not match, ok=%v err=%v", ok, err)
	}
	rec, _, err := database.LockIdempotencyKey(store.DB, "k")
	if err != nil || rec.Resolved() || rec.Checksum != "c2" {
		t.Fatalf("claim was modified: %+v err=%v", rec, err)
	}
}

func TestReleaseIdempotencyKeyOnlyMatchingChecksum(t *testing.T) {
	store := testutil.NewStore(t)
	exp := time.Now().UTC().Add(time.Minute)
	if _, err := database.InsertIdempotencyKey(store.DB, models.IdempotencyKey{Key: "k", Checksum: "c1", ExpiresAt: exp}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if released, _ := database.ReleaseIdempotencyKey(store.DB, "k", "c2"); released {
		t.Fatal("released with wrong checksum")
	}
	if released, err := database.ReleaseIdempotencyKey(store.DB, "k", "c1"); err != nil || !released {
		t.Fatalf("expected release, released=%v err=%v", released, err)
	}
}

func TestDeleteExpiredIdempotencyKeysHonorsBatch(t *testing.T) {
	store := testutil.NewStore(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		rec := models.IdempotencyKey{Key: fmt.Sprintf("old-%d", i), Checksum: "c", ExpiresAt: now.Add(-time.Duration(i+1) * time.Minute)}
		if _, err := database.InsertIdempotencyKey(store.DB, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if _, err := database.InsertIdempotencyKey(store.DB, models.IdempotencyKey{Key: "live", Checksum: "c", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	deleted, err := database.DeleteExpiredIdempotencyKeys(store.DB, now, 2)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted with batch=2, got %d", deleted)
	}
	deleted, err = database.DeleteExpiredIdempotencyKeys(store.DB, now, 10)
	if err != nil || deleted != 1 {
		t.Fatalf("expected last expired row deleted, got %d err=%v", deleted, err)
	}
	if _, found, _ := database.LockIdempotencyKey(store.DB, "live"); !found {
		t.Fatal("unexpired record was deleted")
	}
}

func TestAppendWorkflowStepsContinuesSequence(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	err := store.WithTx(ctx, func(tx *gorm.DB) error {
		first, err := database.AppendWorkflowSteps(tx, models.KindTransfer, "wf-1", []database.StepSpec{
			{Name: "reserve_funds", Status: models.StatusSucceeded},
			{Name: "commit_transfer", Status: models.StatusPending},
		}, at)
		if err != nil {
			return err
		}
		if first[0].Sequence != 1 || first[1].Sequence != 2 {
			t.Fatalf("unexpected sequences %d,%d", first[0].Sequence, first[1].Sequence)
		}
		more, err := database.AppendWorkflowSteps(tx, models.KindTransfer, "wf-1", []database.StepSpec{
			{Name: "settle", Status: models.StatusPending},
		}, at)
		if err != nil {
			return err
		}
		if more[0].Sequence != 3 {
			t.Fatalf("expected sequence 3, got %d", more[0].Sequence)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	steps, err := database.FetchWorkflowSteps(store.DB, "wf-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for i, s := range steps {
		if s.Sequence != i+1 {
			t.Fatalf("step %d has sequence %d", i, s.Sequence)
		}
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := testutil.NewStore(t)
	boom := errors.New("boom")

	err := store.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := database.UpsertTransfer(tx, &models.Transfer{
			TransferID: "t-1", SourceAccountID: "A", DestinationAccountID: "B",
			Amount: decimal.NewFromInt(5), Currency: "VBC", Status: models.StatusPending,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, err := database.CountWorkflows(store.DB, models.KindTransfer, "t-1")
	if err != nil || n != 0 {
		t.Fatalf("expected rollback, count=%d err=%v", n, err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	store := testutil.NewStore(t)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = store.WithTx(context.Background(), func(tx *gorm.DB) error {
			_ = database.UpsertTransfer(tx, &models.Transfer{
				TransferID: "t-2", SourceAccountID: "A", DestinationAccountID: "B",
				Amount: decimal.NewFromInt(5), Currency: "VBC", Status: models.StatusPending,
			})
			panic("handler exploded")
		})
	}()

	// the single pooled connection must have been released
	n, err := database.CountWorkflows(store.DB, models.KindTransfer, "t-2")
	if err != nil || n != 0 {
		t.Fatalf("expected rollback after panic, count=%d err=%v", n, err)
	}
}

func TestWithTxTimeoutIsStoreUnavailable(t *testing.T) {
	store := testutil.NewStore(t)
	store.QueryTimeout = 10 * time.Millisecond

	err := store.WithTx(context.Background(), func(tx *gorm.DB) error {
		<-tx.Statement.Context.Done()
		return tx.Statement.Context.Err()
	})
	if apperrors.KindOf(err) != apperrors.KindStoreUnavailable {
		t.Fatalf("expected store_unavailable, got %v", err)
	}
}

func TestAdjustAccountBalances(t *testing.T) {
	store := testutil.NewStore(t)
	acct := models.Account{AccountID: "A", PlayerID: "p1", Currency: "VBC", Status: "active", AvailableBalance: decimal.NewFromInt(500)}
	if err := store.DB.Create(&acct).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := database.AdjustAccountBalances(store.DB, []models.BalanceAdjustment{
		{AccountID: "A", AvailableDelta: decimal.NewFromInt(-100), HeldDelta: decimal.NewFromInt(100)},
		{AccountID: "missing", AvailableDelta: decimal.NewFromInt(1)},
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	var got models.Account
	if err := store.DB.First(&got, "account_id = ?", "A").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.AvailableBalance.Equal(decimal.NewFromInt(400)) || !got.HeldBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected balances available=%s held=%s", got.AvailableBalance, got.HeldBalance)
	}
}

func TestOutboxRelayableSelection(t *testing.T) {
	store := testutil.NewStore(t)
	now := time.Now().UTC()
	rows := []models.TransactionEvent{
		{EventID: "fresh", EventType: "transfers.initiated", ResourceType: "transfers", ResourceID: "t1", Payload: datatypes.JSON(`{}`), OccurredAt: now},
		{EventID: "stale", EventType: "transfers.initiated", ResourceType: "transfers", ResourceID: "t2", Payload: datatypes.JSON(`{}`), OccurredAt: now.Add(-time.Hour)},
		{EventID: "failed", EventType: "transfers.initiated", ResourceType: "transfers", ResourceID: "t3", Payload: datatypes.JSON(`{}`), OccurredAt: now.Add(-2 * time.Hour), Status: models.EventStatusFailed, Retries: 1},
		{EventID: "exhausted", EventType: "transfers.initiated", ResourceType: "transfers", ResourceID: "t4", Payload: datatypes.JSON(`{}`), OccurredAt: now.Add(-3 * time.Hour), Status: models.EventStatusFailed, Retries: 5},
	}
	for i := range rows {
		if err := database.InsertTransactionEvent(store.DB, &rows[i]); err != nil {
			t.Fatalf("insert %s: %v", rows[i].EventID, err)
		}
	}

	got, err := database.ListRelayableEvents(store.DB, now, time.Minute, 5, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "failed" || got[1].EventID != "stale" {
		ids := make([]string, 0, len(got))
		for _, r := range got {
			ids = append(ids, r.EventID)
		}
		t.Fatalf("unexpected relayable rows %v", ids)
	}

	if err := database.MarkEventFailed(store.DB, "stale", "broker down"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := database.MarkEventPublished(store.DB, "failed", now); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	var stale models.TransactionEvent
	if err := store.DB.First(&stale, "event_id = ?", "stale").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stale.Status != models.EventStatusFailed || stale.Retries != 1 || stale.Error == nil || *stale.Error != "broker down" {
		t.Fatalf("unexpected failed row %+v", stale)
	}
}

func TestFetchWorkflowStatusUnknown(t *testing.T) {
	store := testutil.NewStore(t)
	_, found, err := database.FetchWorkflowStatus(store.DB, models.KindMarketOrder, "nope")
	if err != nil || found {
		t.Fatalf("expected not found, found=%v err=%v", found, err)
	}
	if _, _, err := database.FetchWorkflowStatus(store.DB, "bogus", "x"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
