package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

// Tables is the read/write view of the store inside one transaction.
// Records returned are decoded copies; edits become visible only through
// Put*.
type Tables interface {
	// User returns the user with code, ErrUserNotFound if absent.
	User(code int64) (*domain.User, error)
	// Users returns all users ordered by code.
	Users() ([]*domain.User, error)
	// PutUser inserts or replaces a user row.
	PutUser(u *domain.User) error
	// DeleteUser removes a user row, ErrUserNotFound if absent.
	DeleteUser(code int64) error

	// Order returns the order with code, ErrOrderNotFound if absent.
	Order(code int64) (*domain.Order, error)
	// Orders returns all orders ordered by code.
	Orders() ([]*domain.Order, error)
	// PutOrder inserts or replaces an order row.
	PutOrder(o *domain.Order) error
	// DeleteOrder removes an order row, ErrOrderNotFound if absent.
	DeleteOrder(code int64) error

	// Clear removes every row of the family table (meta history is kept).
	Clear(family domain.Family) (int, error)

	// Meta returns the latest meta record; version 0 when none exists.
	Meta(family domain.Family) (domain.MetaRecord, error)
	// MetaHistory returns every meta record in version order.
	MetaHistory(family domain.Family) ([]domain.MetaRecord, error)
	// ReplaceMetaHistory drops the family's meta history and writes
	// history instead.
	ReplaceMetaHistory(family domain.Family, history []domain.MetaRecord) error
}

// txTables implements Tables over a Badger transaction.
type txTables struct {
	txn *badger.Txn
}

func (t *txTables) User(code int64) (*domain.User, error) {
	var u domain.User
	found, err := t.get(codeKey(prefixUsers, code), &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrUserNotFound.WithDetailsf("user %d", code)
	}
	return &u, nil
}

func (t *txTables) Users() ([]*domain.User, error) {
	var users []*domain.User
	err := t.scan(prefixUsers, func(data []byte) error {
		var u domain.User
		if err := json.Unmarshal(data, &u); err != nil {
			return err
		}
		users = append(users, &u)
		return nil
	})
	return users, err
}

func (t *txTables) PutUser(u *domain.User) error {
	return t.put(codeKey(prefixUsers, u.Code), u)
}

func (t *txTables) DeleteUser(code int64) error {
	return t.delete(codeKey(prefixUsers, code), domain.ErrUserNotFound.WithDetailsf("user %d", code))
}

func (t *txTables) Order(code int64) (*domain.Order, error) {
	var o domain.Order
	found, err := t.get(codeKey(prefixOrders, code), &o)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrOrderNotFound.WithDetailsf("order %d", code)
	}
	return &o, nil
}

func (t *txTables) Orders() ([]*domain.Order, error) {
	var orders []*domain.Order
	err := t.scan(prefixOrders, func(data []byte) error {
		var o domain.Order
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		orders = append(orders, &o)
		return nil
	})
	return orders, err
}

func (t *txTables) PutOrder(o *domain.Order) error {
	return t.put(codeKey(prefixOrders, o.Code), o)
}

func (t *txTables) DeleteOrder(code int64) error {
	return t.delete(codeKey(prefixOrders, code), domain.ErrOrderNotFound.WithDetailsf("order %d", code))
}

func (t *txTables) Clear(family domain.Family) (int, error) {
	if !validFamily(family) {
		return 0, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family)
	}
	return t.deletePrefix(tablePrefix(family))
}

func (t *txTables) Meta(family domain.Family) (domain.MetaRecord, error) {
	if !validFamily(family) {
		return domain.MetaRecord{}, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family)
	}
	prefix := metaPrefix(family)

	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	it.Seek(lastKeyOf(prefix))
	if !it.ValidForPrefix(prefix) {
		return domain.MetaRecord{}, nil
	}

	var meta domain.MetaRecord
	err := it.Item().Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return domain.MetaRecord{}, fmt.Errorf("decode %s meta: %w", family, err)
	}
	return meta, nil
}

func (t *txTables) MetaHistory(family domain.Family) ([]domain.MetaRecord, error) {
	if !validFamily(family) {
		return nil, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family)
	}
	var history []domain.MetaRecord
	err := t.scan(metaPrefix(family), func(data []byte) error {
		var m domain.MetaRecord
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		history = append(history, m)
		return nil
	})
	return history, err
}

func (t *txTables) ReplaceMetaHistory(family domain.Family, history []domain.MetaRecord) error {
	if !validFamily(family) {
		return domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family)
	}
	prefix := metaPrefix(family)
	if _, err := t.deletePrefix(prefix); err != nil {
		return err
	}

	sorted := make([]domain.MetaRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, m := range sorted {
		if m.Version == 0 {
			return domain.ErrInvalidArgument.WithDetailsf("%s meta version must be positive", family)
		}
		if err := t.put(versionKey(prefix, m.Version), m); err != nil {
			return err
		}
	}
	return nil
}

// appendMeta writes the next meta version for family.
func (t *txTables) appendMeta(family domain.Family, line string) (domain.MetaRecord, error) {
	current, err := t.Meta(family)
	if err != nil {
		return domain.MetaRecord{}, err
	}
	next := domain.MetaRecord{
		Version:   current.Version + 1,
		ChangeLog: []string{line},
	}
	if err := t.put(versionKey(metaPrefix(family), next.Version), next); err != nil {
		return domain.MetaRecord{}, err
	}
	return next, nil
}

func (t *txTables) get(key []byte, v any) (bool, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
	if err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (t *txTables) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return t.txn.Set(key, data)
}

func (t *txTables) delete(key []byte, notFound error) error {
	if _, err := t.txn.Get(key); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound
		}
		return err
	}
	return t.txn.Delete(key)
}

func (t *txTables) scan(prefix []byte, fn func(data []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
		}
	}
	return nil
}

func (t *txTables) deletePrefix(prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := t.txn.NewIterator(opts)

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := t.txn.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
