package quotestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ListQuotes returns every quote ordered by id. The result is empty, not an
// error, when there are no quotes.
func (s *Store) ListQuotes(ctx context.Context) ([]Quote, error) {
	const query = `SELECT id, title, description, person_id FROM quotes ORDER BY id;`

	quotes := []Quote{}
	if err := s.db.SelectContext(ctx, &quotes, query); err != nil {
		return nil, classify("list quotes", err)
	}

	return quotes, nil
}

func (s *Store) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	return getQuote(ctx, s.db, id)
}

func (s *Store) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	query, args, err := sqlx.Named(`INSERT INTO quotes (title, description, person_id)
VALUES (:title, :description, :person_id) RETURNING id;`, req)
	if err != nil {
		return nil, classify("create quote", err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, s.db.Rebind(query), args...); err != nil {
		return nil, classify("create quote", err)
	}

	return &Quote{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		PersonID:    req.PersonID,
	}, nil
}

// UpdateQuote applies the non-nil fields of req to the quote with id.
func (s *Store) UpdateQuote(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	var quote *Quote
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		q, err := getQuote(ctx, tx, id)
		if err != nil {
			return err
		}
		req.apply(q)

		query, args, err := sqlx.Named(`UPDATE quotes SET title=:title, description=:description, person_id=:person_id WHERE id=:id;`, q)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return err
		}

		quote = q
		return nil
	})
	if err != nil {
		return nil, classify("update quote", err)
	}

	return quote, nil
}

func (s *Store) DeleteQuote(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM quotes WHERE id=?;`), id)
	if err != nil {
		return classify("delete quote", err)
	}

	return rowsAffected("delete quote", res)
}

func getQuote(ctx context.Context, q queryer, id int64) (*Quote, error) {
	const query = `SELECT id, title, description, person_id FROM quotes WHERE id=?;`

	var quote Quote
	if err := sqlx.GetContext(ctx, q, &quote, q.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify("get quote", err)
	}

	return &quote, nil
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func rowsAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
