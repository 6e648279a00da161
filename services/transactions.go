package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"
)

const TransactionsCollection = "transactions"

// Amounts must fit a float64: larger values overflow to infinity and smaller
// ones round to zero.
const (
	maxAmountMagnitude = 308
	minAmountMagnitude = -324
)

// Confirmer is the interactive yes/no gate in front of a delete.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Answer is a Confirmer with a fixed reply, for callers that collected the
// confirmation up front.
type Answer bool

func (a Answer) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

// TransactionFeed mirrors the signed-in user's transactions, newest first.
// Every snapshot replaces the whole list.
type TransactionFeed struct {
	st      store.Store
	session *Session
	now     func() time.Time

	mu      sync.RWMutex
	items   []models.Transaction
	err     error
	unsub   store.Unsubscribe
	unwatch func()

	readyCh   chan struct{}
	readyOnce sync.Once
	watchers  observers[[]models.Transaction]
	errorSubs observers[error]
}

func NewTransactionFeed(st store.Store, session *Session) *TransactionFeed {
	return &TransactionFeed{
		st:      st,
		session: session,
		now:     time.Now,
		items:   []models.Transaction{},
		readyCh: make(chan struct{}),
	}
}

// FeedQuery selects uid's transactions by date, then creation time, descending.
func FeedQuery(uid string) store.Query {
	return store.Query{
		Collection: TransactionsCollection,
		Where:      []store.Filter{{Field: "uid", Value: uid}},
		OrderBy: []store.Order{
			{Field: "date", Desc: true},
			{Field: "createdAt", Desc: true},
		},
	}
}

// Start subscribes to the feed and waits for the first snapshot.
func (f *TransactionFeed) Start(ctx context.Context) error {
	uid := f.session.UserID()
	if uid == "" {
		utils.SafeWarn("Transaction feed start without an authenticated user")
		return ErrNotAuthenticated
	}

	firstErr := make(chan error, 1)
	unsub, err := f.st.Subscribe(ctx, FeedQuery(uid),
		func(docs []store.Document) { f.onSnapshot(uid, docs) },
		func(err error) {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			utils.SafeError("Transaction feed failed for %s: %v", utils.MaskID(uid), err)
			f.errorSubs.emit(err)
			select {
			case firstErr <- err:
			default:
			}
		})
	if err != nil {
		return fmt.Errorf("failed to subscribe to transactions: %w", err)
	}

	unwatch := f.session.Watch(func(u *models.User) {
		if u == nil {
			f.Close()
		}
	})
	f.mu.Lock()
	f.unsub = unsub
	f.unwatch = unwatch
	f.mu.Unlock()
	if f.session.UserID() == "" {
		f.Close()
		return ErrNotAuthenticated
	}

	select {
	case <-f.readyCh:
		return nil
	case err := <-firstErr:
		f.Close()
		return err
	case <-ctx.Done():
		f.Close()
		return ctx.Err()
	}
}

func (f *TransactionFeed) onSnapshot(uid string, docs []store.Document) {
	items := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		tx := models.TransactionFromDocument(d.ID, d.Data)
		if tx.UID != uid {
			continue
		}
		items = append(items, tx)
	}

	f.mu.Lock()
	f.items = items
	f.err = nil
	f.mu.Unlock()

	f.readyOnce.Do(func() { close(f.readyCh) })
	f.watchers.emit(slices.Clone(items))
}

// Items returns a copy of the latest snapshot.
func (f *TransactionFeed) Items() []models.Transaction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}

// Err returns the subscription error since the last good snapshot, if any.
func (f *TransactionFeed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

func (f *TransactionFeed) Watch(fn func([]models.Transaction)) func() {
	return f.watchers.add(fn)
}

func (f *TransactionFeed) OnError(fn func(error)) func() {
	return f.errorSubs.add(fn)
}

// ParseAmount accepts a finite decimal strictly greater than zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, validationErr("amount", "Amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, validationErr("amount", "Amount must be a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, validationErr("amount", "Amount must be greater than zero")
	}
	// checked from the exponent, before anything formats the full value
	magnitude := d.NumDigits() + int(d.Exponent()) - 1
	if magnitude < minAmountMagnitude {
		return decimal.Zero, validationErr("amount", "Amount must be greater than zero")
	}
	if magnitude > maxAmountMagnitude || math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, validationErr("amount", "Amount must be a finite number")
	}
	return d, nil
}

// Create validates in and appends it to the user's transactions, returning the new id.
func (f *TransactionFeed) Create(ctx context.Context, in models.TransactionInput) (string, error) {
	uid := f.session.UserID()
	if uid == "" {
		utils.SafeWarn("Transaction create without an authenticated user")
		return "", ErrNotAuthenticated
	}

	tx, err := f.build(uid, in)
	if err != nil {
		return "", err
	}

	id, err := f.st.Add(ctx, TransactionsCollection, tx.Document())
	if err != nil {
		return "", fmt.Errorf("failed to save transaction: %w", err)
	}
	utils.LogTransactionAction("Created", id, uid)
	return id, nil
}

func (f *TransactionFeed) build(uid string, in models.TransactionInput) (models.Transaction, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return models.Transaction{}, err
	}
	if !in.Kind.Valid() {
		return models.Transaction{}, validationErr("kind", "Kind must be income or expense")
	}
	date := strings.TrimSpace(in.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return models.Transaction{}, validationErr("date", "Date must be YYYY-MM-DD")
	}

	return models.Transaction{
		UID:       uid,
		Kind:      in.Kind,
		Amount:    amount,
		Date:      date,
		Category:  strings.TrimSpace(in.Category),
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: f.now().UnixMilli(),
	}, nil
}

// Remove deletes one of the user's transactions once c confirms. A declined
// confirmation returns (false, nil) and writes nothing.
func (f *TransactionFeed) Remove(ctx context.Context, id string, c Confirmer) (bool, error) {
	uid := f.session.UserID()
	if uid == "" {
		utils.SafeWarn("Transaction delete without an authenticated user")
		return false, ErrNotAuthenticated
	}

	doc, err := f.st.Get(ctx, TransactionsCollection, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && doc.String("uid") != uid) {
		return false, ErrTransactionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load transaction: %w", err)
	}

	ok, err := c.Confirm(ctx, "Are you sure you want to delete this transaction?")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := f.st.Delete(ctx, TransactionsCollection, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrTransactionNotFound
		}
		return false, fmt.Errorf("failed to delete transaction: %w", err)
	}
	utils.LogTransactionAction("Deleted", id, uid)
	return true, nil
}

// Export reads every transaction of the user once, in feed order.
func (f *TransactionFeed) Export(ctx context.Context) ([]models.Transaction, error) {
	uid := f.session.UserID()
	if uid == "" {
		return nil, ErrNotAuthenticated
	}

	docs, err := f.st.Query(ctx, FeedQuery(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	items := make([]models.Transaction, 0, len(docs))
	for _, d := range docs {
		items = append(items, models.TransactionFromDocument(d.ID, d.Data))
	}
	return items, nil
}

// Close ends the subscription. Safe to call more than once.
func (f *TransactionFeed) Close() {
	f.mu.Lock()
	unsub, unwatch := f.unsub, f.unwatch
	f.unsub, f.unwatch = nil, nil
	f.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if unwatch != nil {
		unwatch()
	}
}
