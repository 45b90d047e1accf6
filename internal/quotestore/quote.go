package quotestore

type Quote struct {
	ID          int64  `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	PersonID    int64  `db:"person_id" json:"person_id"`
}

type Person struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type CreateQuoteRequest struct {
	Title       string `db:"title"`
	Description string `db:"description"`
	PersonID    int64  `db:"person_id"`
}

// UpdateQuoteRequest holds the fields to change. Nil fields are left alone.
type UpdateQuoteRequest struct {
	Title       *string
	Description *string
	PersonID    *int64
}

func (r UpdateQuoteRequest) apply(q *Quote) {
	if r.Title != nil {
		q.Title = *r.Title
	}
	if r.Description != nil {
		q.Description = *r.Description
	}
	if r.PersonID != nil {
		q.PersonID = *r.PersonID
	}
}

type CreatePersonRequest struct {
	Name string `db:"name"`
}

// UpdatePersonRequest holds the fields to change. Nil fields are left alone.
type UpdatePersonRequest struct {
	Name *string
}

func (r UpdatePersonRequest) apply(p *Person) {
	if r.Name != nil {
		p.Name = *r.Name
	}
}
