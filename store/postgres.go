package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/LovationAdmin/finance-tracker/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NotifyChannel is the LISTEN channel fed by the documents trigger.
const NotifyChannel = "documents_changed"

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore keeps documents as JSONB rows and turns NOTIFY events from the
// documents trigger into subscription refreshes.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	hub      *hub
	done     chan struct{}
}

// NewPostgresStore starts listening on NotifyChannel using a dedicated
// connection opened from dsn. The documents table must already exist
// (see config.RunMigrations).
func NewPostgresStore(db *sql.DB, dsn string) (*PostgresStore, error) {
	s := &PostgresStore{db: db, hub: newHub(), done: make(chan struct{})}

	s.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, s.listenerEvent)
	if err := s.listener.Listen(NotifyChannel); err != nil {
		s.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	go s.dispatch()
	return s, nil
}

func (s *PostgresStore) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		log.Printf("⚠️ Document listener lost connection: %v", err)
		if err != nil {
			s.hub.broadcastError(fmt.Errorf("realtime connection lost: %w", err))
		}
	case pq.ListenerEventReconnected:
		log.Println("🔄 Document listener reconnected, refreshing subscriptions")
		s.hub.refreshAll()
	}
}

func (s *PostgresStore) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// nil is sent after a reconnect; changes may have been missed
				s.hub.refreshAll()
				continue
			}
			collection, id, found := strings.Cut(n.Extra, ":")
			if !found {
				continue
			}
			s.hub.changed(collection, id)
		case <-time.After(90 * time.Second):
			go s.listener.Ping()
		}
	}
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query, onSnapshot func([]Document), onError func(error)) (Unsubscribe, error) {
	if _, _, err := buildQuery(q); err != nil {
		return nil, err
	}
	sub := &subscription{collection: q.Collection, onError: onError}
	sub.fetch = func(ctx context.Context) error {
		docs, err := s.Query(ctx, q)
		if err != nil {
			return err
		}
		if !sub.stopped() {
			onSnapshot(docs)
		}
		return nil
	}
	return s.hub.add(ctx, sub)
}

func (s *PostgresStore) SubscribeDoc(ctx context.Context, collection, id string, onSnapshot func(*Document), onError func(error)) (Unsubscribe, error) {
	sub := &subscription{collection: collection, docID: id, onError: onError}
	sub.fetch = func(ctx context.Context) error {
		doc, err := s.Get(ctx, collection, id)
		if err == ErrNotFound {
			doc, err = nil, nil
		}
		if err != nil {
			return err
		}
		if !sub.stopped() {
			onSnapshot(doc)
		}
		return nil
	}
	return s.hub.add(ctx, sub)
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", collection, id, err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: data}, nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Document, error) {
	query, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	return docs, rows.Err()
}

// buildQuery renders q as SQL. Field names are validated because ORDER BY
// directions cannot be bound as parameters.
func buildQuery(q Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)

	for _, f := range q.Where {
		if !fieldName.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		args = append(args, f.Field, fmt.Sprint(f.Value))
		fmt.Fprintf(&sb, ` AND data->>($%d::text) = $%d`, len(args)-1, len(args))
	}

	sb.WriteString(` ORDER BY `)
	for _, o := range q.OrderBy {
		if !fieldName.MatchString(o.Field) {
			return "", nil, fmt.Errorf("invalid order field %q", o.Field)
		}
		args = append(args, o.Field)
		dir := "ASC NULLS FIRST"
		if o.Desc {
			dir = "DESC NULLS LAST"
		}
		fmt.Fprintf(&sb, `data->($%d::text) %s, `, len(args), dir)
	}
	sb.WriteString(`id ASC`)

	return sb.String(), args, nil
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW(), NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	norm, err := Normalize(patch)
	if err != nil {
		return err
	}
	return s.Update(ctx, collection, id, func(map[string]any) (map[string]any, error) {
		return norm, nil
	})
}

// errNoChange rolls back an Update whose function returned no patch.
var errNoChange = errors.New("no change")

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		current, err := lockDocument(ctx, tx, collection, id)
		if err != nil {
			return err
		}

		patch, err := fn(current)
		if err != nil {
			return err
		}
		if patch == nil {
			return errNoChange
		}
		norm, err := Normalize(patch)
		if err != nil {
			return err
		}

		merged, err := json.Marshal(MergePatch(current, norm))
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET data = $3::jsonb, updated_at = NOW()
			WHERE collection = $1 AND id = $2
		`, collection, id, string(merged))
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	return err
}

// lockDocument row-locks collection/id for the rest of tx and returns its
// data, or nil when it did not exist. A missing row is inserted empty first so
// concurrent writers queue on the same lock; rolling back removes it again.
func lockDocument(ctx context.Context, tx *sql.Tx, collection, id string) (map[string]any, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, '{}'::jsonb, NOW(), NOW())
		ON CONFLICT (collection, id) DO NOTHING
	`, collection, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s/%s: %w", collection, id, err)
	}
	created, _ := result.RowsAffected()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s/%s: %w", collection, id, err)
	}
	if created > 0 {
		return nil, nil
	}
	return decodeData(raw)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.hub.close()
	return s.listener.Close()
}
