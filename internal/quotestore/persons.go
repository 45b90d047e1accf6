package quotestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ListPersons returns every person ordered by id.
func (s *Store) ListPersons(ctx context.Context) ([]Person, error) {
	const query = `SELECT id, name FROM persons ORDER BY id;`

	persons := []Person{}
	if err := s.db.SelectContext(ctx, &persons, query); err != nil {
		return nil, classify("list persons", err)
	}

	return persons, nil
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	return getPerson(ctx, s.db, id)
}

func (s *Store) CreatePerson(ctx context.Context, req CreatePersonRequest) (*Person, error) {
	query, args, err := sqlx.Named(`INSERT INTO persons (name) VALUES (:name) RETURNING id;`, req)
	if err != nil {
		return nil, classify("create person", err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, s.db.Rebind(query), args...); err != nil {
		return nil, classify("create person", err)
	}

	return &Person{ID: id, Name: req.Name}, nil
}

func (s *Store) UpdatePerson(ctx context.Context, id int64, req UpdatePersonRequest) (*Person, error) {
	var person *Person
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, err := getPerson(ctx, tx, id)
		if err != nil {
			return err
		}
		req.apply(p)

		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE persons SET name=? WHERE id=?;`), p.Name, p.ID); err != nil {
			return err
		}

		person = p
		return nil
	})
	if err != nil {
		return nil, classify("update person", err)
	}

	return person, nil
}

// DeletePerson removes the person with id. Quotes referencing the person are
// handled according to the store's PersonDeletePolicy: with DeleteRestrict
// the delete fails with ErrConstraintViolation, with DeleteCascade they are
// removed in the same transaction.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getPerson(ctx, tx, id); err != nil {
			return err
		}

		if s.opts.PersonDeletePolicy == DeleteCascade {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM quotes WHERE person_id=?;`), id); err != nil {
				return err
			}
		} else {
			var n int
			if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM quotes WHERE person_id=?;`), id); err != nil {
				return err
			}
			if n > 0 {
				return ErrConstraintViolation
			}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM persons WHERE id=?;`), id)
		if err != nil {
			return err
		}
		return rowsAffected("delete person", res)
	})

	return classify("delete person", err)
}

func getPerson(ctx context.Context, q queryer, id int64) (*Person, error) {
	const query = `SELECT id, name FROM persons WHERE id=?;`

	var person Person
	if err := sqlx.GetContext(ctx, q, &person, q.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify("get person", err)
	}

	return &person, nil
}
