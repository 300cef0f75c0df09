package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned"
	"github.com/louisbranch/gamestate/internal/services/game/storage/versioned/codec"
)

func TestGetAbsentReturnsDefaultWithoutPersisting(t *testing.T) {
	store := openTestStore(t)

	res := execute(t, store, versioned.NewQuery().Get("counter", "c1"))

	value, version, err := versioned.Read[counterValue](res, "counter", "c1")
	if err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if version != versioned.DefaultVersion {
		t.Fatalf("expected version 1, got %d", version)
	}
	if value != (counterValue{}) {
		t.Fatalf("expected default counter, got %+v", value)
	}
	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected no rows persisted, got %d", got)
	}
	if len(res.Updates()) != 0 {
		t.Fatalf("expected no updates for a read, got %v", res.Updates())
	}
}

func TestGetWithDefaultFactory(t *testing.T) {
	store := openTestStore(t)

	q := versioned.NewReadQuery().GetWithDefault("counter", "c1", func() any {
		return counterValue{Count: 600}
	})
	res := execute(t, store, q)

	value, version, err := versioned.Read[counterValue](res, "counter", "c1")
	if err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if value.Count != 600 || version != 1 {
		t.Fatalf("expected factory default at version 1, got %+v@%d", value, version)
	}
}

func TestWriteVersionsStartAtTwoAndIncrementByOne(t *testing.T) {
	store := openTestStore(t)

	for i, want := range []int64{2, 3, 4} {
		res := execute(t, store, versioned.NewQuery().Update("counter", "c1", counterValue{Count: i}))
		if got := res.Updates()["counter"]; got != want {
			t.Fatalf("write %d: expected version %d, got %d", i, want, got)
		}
	}

	value, version := readCounter(t, store, "c1")
	if value.Count != 2 || version != 4 {
		t.Fatalf("expected count 2 at version 4, got %+v@%d", value, version)
	}
}

func TestBumpCreatesThenIncrements(t *testing.T) {
	store := openTestStore(t)

	res := execute(t, store, versioned.NewReadQuery().Get("journal", "p1"))
	if v, _ := res.Lookup("journal", "p1"); v.Version != 1 {
		t.Fatalf("expected virtual version 1, got %d", v.Version)
	}

	res = execute(t, store, versioned.NewQuery().Bump("journal", "p1"))
	if got := res.Updates()["journal"]; got != 2 {
		t.Fatalf("expected first bump to create version 2, got %d", got)
	}

	res = execute(t, store, versioned.NewQuery().Bump("journal", "p1").Get("journal", "p1"))
	if got := res.Updates()["journal"]; got != 3 {
		t.Fatalf("expected second bump to reach version 3, got %d", got)
	}
	value, version, err := versioned.Read[journalValue](res, "journal", "p1")
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	if version != 3 || value != (journalValue{}) {
		t.Fatalf("expected default journal at version 3, got %+v@%d", value, version)
	}
}

func TestBumpLeavesValueUntouched(t *testing.T) {
	store := openTestStore(t)

	execute(t, store, versioned.NewQuery().Update("counter", "c1", counterValue{Count: 9, Note: "kept"}))
	execute(t, store, versioned.NewQuery().Bump("counter", "c1"))

	value, version := readCounter(t, store, "c1")
	if value.Count != 9 || value.Note != "kept" {
		t.Fatalf("expected bump to keep value, got %+v", value)
	}
	if version != 3 {
		t.Fatalf("expected version 3, got %d", version)
	}
}

func TestBumpWithDefaultFactoryPersistsFactoryValue(t *testing.T) {
	store := openTestStore(t)

	execute(t, store, versioned.NewQuery().BumpWithDefault("counter", "c1", func() any {
		return counterValue{Count: 5}
	}))

	value, version := readCounter(t, store, "c1")
	if value.Count != 5 || version != 2 {
		t.Fatalf("expected factory value at version 2, got %+v@%d", value, version)
	}
}

func TestContinuationFailureRollsBackEveryDepth(t *testing.T) {
	store := openTestStore(t)
	execute(t, store, versioned.NewQuery().Update("counter", "seed", counterValue{Count: 1}))

	boom := errors.New("reward service refused")
	q := versioned.NewQuery().
		Update("counter", "seed", counterValue{Count: 100}).
		Update("counter", "c2", counterValue{Count: 2}).
		Bump("journal", "p1").
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewQuery().
				Update("counter", "c3", counterValue{Count: 3}).
				Then(func(*versioned.Results) (*versioned.Query, error) {
					return versioned.NewQuery().Bump("journal", "p2"), nil
				}, false), nil
		}, false).
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return nil, boom
		}, false)

	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, boom) {
		t.Fatalf("expected continuation error, got %v", err)
	}

	seed, version := readCounter(t, store, "seed")
	if seed.Count != 1 || version != 2 {
		t.Fatalf("expected seed untouched at version 2, got %+v@%d", seed, version)
	}
	res := execute(t, store, versioned.NewReadQuery().
		Get("counter", "c2").
		Get("counter", "c3").
		Get("journal", "p1").
		Get("journal", "p2"))
	for _, key := range []versioned.Key{
		{Type: "counter", ID: "c2"},
		{Type: "counter", ID: "c3"},
		{Type: "journal", ID: "p1"},
		{Type: "journal", ID: "p2"},
	} {
		v, _ := res.Lookup(key.Type, key.ID)
		if v.Version != versioned.DefaultVersion {
			t.Fatalf("expected %s to stay unpersisted, got version %d", key, v.Version)
		}
	}
	if got := countRows(t, store); got != 1 {
		t.Fatalf("expected only the seed row, got %d rows", got)
	}
	if store.OpenTransactions() != 0 {
		t.Fatalf("expected no open transactions, got %d", store.OpenTransactions())
	}
}

func TestContinuationPanicRollsBack(t *testing.T) {
	store := openTestStore(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		q := versioned.NewQuery().
			Update("counter", "c1", counterValue{Count: 1}).
			Then(func(*versioned.Results) (*versioned.Query, error) {
				panic("continuation bug")
			}, false)
		_, _ = store.Execute(context.Background(), q)
	}()

	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected rollback after panic, got %d rows", got)
	}
	if store.OpenTransactions() != 0 {
		t.Fatalf("expected no open transactions, got %d", store.OpenTransactions())
	}
}

func TestUpdatesMapHoldsFinalVersions(t *testing.T) {
	store := openTestStore(t)
	execute(t, store, versioned.NewQuery().Update("counter", "c1", counterValue{Count: 1}))

	q := versioned.NewQuery().
		Update("counter", "c1", counterValue{Count: 2}).
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewQuery().
				Update("counter", "c1", counterValue{Count: 3}).
				Bump("journal", "p1").
				Then(func(*versioned.Results) (*versioned.Query, error) {
					return versioned.NewQuery().
						Bump("journal", "p1").
						Update("token", "t1", gemToken{Color: "red"}), nil
				}, false), nil
		}, false)

	res := execute(t, store, q)

	want := map[string]int64{"counter": 4, "journal": 3, "token": 2}
	got := res.Updates()
	if len(got) != len(want) {
		t.Fatalf("expected updates %v, got %v", want, got)
	}
	for typ, version := range want {
		if got[typ] != version {
			t.Fatalf("expected %s at %d, got %v", typ, version, got)
		}
	}
}

func TestNonReplacingContinuationKeepsOuterReads(t *testing.T) {
	store := openTestStore(t)
	execute(t, store, versioned.NewQuery().Update("counter", "c1", counterValue{Count: 1}))

	var seenLater counterValue
	var seenVersion int64
	q := versioned.NewQuery().
		Get("counter", "c1").
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewQuery().Update("counter", "c1", counterValue{Count: 50}).Get("counter", "c1"), nil
		}, false).
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			value, version, err := versioned.Read[counterValue](res, "counter", "c1")
			if err != nil {
				return nil, err
			}
			seenLater, seenVersion = value, version
			return nil, nil
		}, false)

	res := execute(t, store, q)

	if seenLater.Count != 1 || seenVersion != 2 {
		t.Fatalf("expected later continuation to see outer read 1@2, got %+v@%d", seenLater, seenVersion)
	}
	outer, version, err := versioned.Read[counterValue](res, "counter", "c1")
	if err != nil {
		t.Fatalf("read outer results: %v", err)
	}
	if outer.Count != 1 || version != 2 {
		t.Fatalf("expected caller to get outer read 1@2, got %+v@%d", outer, version)
	}
	if got := res.Updates()["counter"]; got != 3 {
		t.Fatalf("expected nested write to reach updates map at 3, got %d", got)
	}
}

func TestReplacingContinuationSwapsResults(t *testing.T) {
	store := openTestStore(t)

	var seen counterValue
	q := versioned.NewQuery().
		Get("counter", "c1").
		Extra("origin", "outer").
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewQuery().
				Update("counter", "c1", counterValue{Count: 7}).
				Get("counter", "c1").
				Extra("origin", "nested"), nil
		}, true).
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			value, _, err := versioned.Read[counterValue](res, "counter", "c1")
			seen = value
			return nil, err
		}, false)

	res := execute(t, store, q)

	if seen.Count != 7 {
		t.Fatalf("expected later continuation to see replaced results, got %+v", seen)
	}
	origin, _ := versioned.Extra[string](res, "origin")
	if origin != "nested" {
		t.Fatalf("expected caller to get nested results, got origin %q", origin)
	}
	if got := res.Updates()["counter"]; got != 2 {
		t.Fatalf("expected counter at 2, got %d", got)
	}
}

func TestContinuationSeesUpdatesSoFar(t *testing.T) {
	store := openTestStore(t)

	var seen map[string]int64
	q := versioned.NewQuery().
		Bump("journal", "p1").
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			seen = res.Updates()
			return nil, nil
		}, false)
	execute(t, store, q)

	if seen["journal"] != 2 {
		t.Fatalf("expected continuation to see journal at 2, got %v", seen)
	}
}

func TestExtrasPassThrough(t *testing.T) {
	store := openTestStore(t)

	var threshold int
	q := versioned.NewReadQuery().
		Extra("threshold", 500).
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			threshold, _ = versioned.Extra[int](res, "threshold")
			return nil, nil
		}, false)
	res := execute(t, store, q)

	if threshold != 500 {
		t.Fatalf("expected continuation to see extra 500, got %d", threshold)
	}
	if got, ok := versioned.Extra[int](res, "threshold"); !ok || got != 500 {
		t.Fatalf("expected caller to see extra 500, got %d", got)
	}
	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected extras not to be persisted, got %d rows", got)
	}
}

func TestReadOnlyQueryUpdateRejectedBeforeTransaction(t *testing.T) {
	store := openTestStore(t)

	q := versioned.NewReadQuery().Update("counter", "c1", counterValue{Count: 1})
	if !errors.Is(q.Err(), versioned.ErrUnsupportedOperation) {
		t.Fatalf("expected builder to reject update, got %v", q.Err())
	}
	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, versioned.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", got)
	}
}

func TestWriteQueryNestedInReadOnlyTransaction(t *testing.T) {
	store := openTestStore(t)

	q := versioned.NewReadQuery().
		Get("counter", "c1").
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewQuery().Update("counter", "c1", counterValue{Count: 1}), nil
		}, false)

	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, versioned.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported operation, got %v", err)
	}
	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", got)
	}
}

func TestReadOnlyNestedInWriteTransaction(t *testing.T) {
	store := openTestStore(t)

	q := versioned.NewQuery().
		Update("counter", "c1", counterValue{Count: 4}).
		Then(func(*versioned.Results) (*versioned.Query, error) {
			return versioned.NewReadQuery().Get("counter", "c1"), nil
		}, true)
	res := execute(t, store, q)

	value, version, err := versioned.Read[counterValue](res, "counter", "c1")
	if err != nil {
		t.Fatalf("read nested results: %v", err)
	}
	if value.Count != 4 || version != 2 {
		t.Fatalf("expected nested read to see uncommitted write 4@2, got %+v@%d", value, version)
	}
}

func TestPolymorphicRoundTrip(t *testing.T) {
	store := openTestStore(t)
	execute(t, store, versioned.NewQuery().
		Update("token", "t1", coinToken{Amount: 25}).
		Update("token", "t2", gemToken{Color: "blue"}))

	res := execute(t, store, versioned.NewReadQuery().Get("token", "t1").Get("token", "t2"))

	coin, _, err := versioned.Read[token](res, "token", "t1")
	if err != nil {
		t.Fatalf("read coin: %v", err)
	}
	if c, ok := coin.(coinToken); !ok || c.Amount != 25 {
		t.Fatalf("expected coin token 25, got %#v", coin)
	}
	gem, _, err := versioned.Read[token](res, "token", "t2")
	if err != nil {
		t.Fatalf("read gem: %v", err)
	}
	if g, ok := gem.(gemToken); !ok || g.Color != "blue" {
		t.Fatalf("expected blue gem token, got %#v", gem)
	}
}

func TestUnknownVariantFailsReadAndAbortsTransaction(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.sqlDB.Exec(
		`INSERT INTO objects (type, id, value, version) VALUES ('token', 't1', ?, 2)`,
		[]byte(`{"kind":"pearl","size":3}`),
	); err != nil {
		t.Fatalf("seed raw row: %v", err)
	}

	q := versioned.NewQuery().
		Update("counter", "c1", counterValue{Count: 1}).
		Get("token", "t1")
	_, err := store.Execute(context.Background(), q)
	if !errors.Is(err, versioned.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if !errors.Is(err, codec.ErrUnknownVariant) {
		t.Fatalf("expected unknown variant cause, got %v", err)
	}
	if got := countRows(t, store); got != 1 {
		t.Fatalf("expected write to be rolled back, got %d rows", got)
	}
}

func TestUnknownSchemaIsSerializationError(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Execute(context.Background(), versioned.NewQuery().Update("mystery", "m1", 1))
	if !errors.Is(err, versioned.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if !errors.Is(err, codec.ErrUnknownSchema) {
		t.Fatalf("expected unknown schema cause, got %v", err)
	}
}

func TestWrongValueTypeIsSerializationError(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Execute(context.Background(), versioned.NewQuery().Update("counter", "c1", journalValue{}))
	if !errors.Is(err, versioned.ErrSerialization) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	store := openTestStore(t)
	execute(t, store, versioned.NewQuery().Update("counter", "c1", counterValue{Count: 0}))

	increment := versioned.NewQuery().
		Get("counter", "c1").
		Then(func(res *versioned.Results) (*versioned.Query, error) {
			value, _, err := versioned.Read[counterValue](res, "counter", "c1")
			if err != nil {
				return nil, err
			}
			value.Count++
			return versioned.NewQuery().Update("counter", "c1", value), nil
		}, false)

	const writers = 8
	start := make(chan struct{})
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Execute(context.Background(), increment)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent execute: %v", err)
		}
	}

	value, version := readCounter(t, store, "c1")
	if value.Count != writers {
		t.Fatalf("expected count %d, got %d", writers, value.Count)
	}
	if version != 2+writers {
		t.Fatalf("expected version %d, got %d", 2+writers, version)
	}
}

func TestNilNestedQueryIsNoop(t *testing.T) {
	store := openTestStore(t)

	res := execute(t, store, versioned.NewQuery().
		Update("counter", "c1", counterValue{Count: 1}).
		Then(func(*versioned.Results) (*versioned.Query, error) { return nil, nil }, true))

	if _, ok := res.Lookup("counter", "c1"); ok {
		t.Fatal("expected nil replacing step to keep current results")
	}
	if got := res.Updates()["counter"]; got != 2 {
		t.Fatalf("expected counter at 2, got %d", got)
	}
}

func TestDeepContinuationChainRejected(t *testing.T) {
	store := openTestStore(t)

	var next versioned.Continuation
	next = func(*versioned.Results) (*versioned.Query, error) {
		return versioned.NewQuery().Bump("journal", "p1").Then(next, false), nil
	}
	_, err := store.Execute(context.Background(), versioned.NewQuery().Then(next, false))
	if !errors.Is(err, versioned.ErrInvalidQuery) {
		t.Fatalf("expected invalid query for runaway chain, got %v", err)
	}
	if got := countRows(t, store); got != 0 {
		t.Fatalf("expected rollback, got %d rows", got)
	}
}

func TestExecuteRequiresQuery(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Execute(context.Background(), nil); !errors.Is(err, versioned.ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}
	var nilStore *Store
	if _, err := nilStore.Execute(context.Background(), versioned.NewQuery()); !errors.Is(err, versioned.ErrConnection) {
		t.Fatalf("expected connection error for nil store, got %v", err)
	}
}
