package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tableside/api/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Users ---

const userColumns = `id, username, full_name, role, hashed_password, is_active`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.HashedPassword, &u.IsActive)
	return u, err
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_active`, username))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`, id))
}

// UpsertUser creates a user or resets the password and role of an existing one.
func (q *Queries) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (username, full_name, role, hashed_password)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET full_name = EXCLUDED.full_name, role = EXCLUDED.role,
		    hashed_password = EXCLUDED.hashed_password, is_active = TRUE
		RETURNING `+userColumns,
		u.Username, u.FullName, u.Role, u.HashedPassword))
}

// --- Products ---

const productColumns = `id, name, category, price, stock_quantity, is_active`

func scanProduct(row rowScanner) (model.Product, error) {
	var (
		p     model.Product
		price pgtype.Numeric
		stock pgtype.Int4
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &stock, &p.IsActive); err != nil {
		return model.Product{}, err
	}
	p.Price = numericToDecimal(price)
	p.StockQuantity = int4Ptr(stock)
	return p, nil
}

// ListProducts returns active products, optionally limited to one category.
func (q *Queries) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE is_active AND ($1 = '' OR category = $1)
		ORDER BY category, name`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	return scanProduct(q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (q *Queries) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `
		INSERT INTO products (name, category, price, stock_quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING `+productColumns,
		p.Name, p.Category, decimalToNumeric(p.Price), pgInt4(p.StockQuantity)))
}

// TakeStock decrements a tracked product's stock by n if enough remains.
// It reports false when the product is tracked and short. Untracked
// products always succeed.
func (q *Queries) TakeStock(ctx context.Context, id uuid.UUID, n int64) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE products
		SET stock_quantity = CASE WHEN stock_quantity IS NULL THEN NULL ELSE stock_quantity - $2 END,
		    updated_at = now()
		WHERE id = $1 AND (stock_quantity IS NULL OR stock_quantity >= $2)`, id, n)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReturnStock gives n units back to a tracked product.
func (q *Queries) ReturnStock(ctx context.Context, id uuid.UUID, n int64) error {
	_, err := q.db.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity IS NOT NULL`, id, n)
	return err
}

// --- Rooms ---

const roomColumns = `id, number, guest_name`

func scanRoom(row rowScanner) (model.Room, error) {
	var (
		r     model.Room
		guest pgtype.Text
	)
	if err := row.Scan(&r.ID, &r.Number, &guest); err != nil {
		return model.Room{}, err
	}
	r.GuestName = textPtr(guest)
	return r, nil
}

func (q *Queries) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := q.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) GetRoom(ctx context.Context, id uuid.UUID) (model.Room, error) {
	return scanRoom(q.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (q *Queries) CreateRoom(ctx context.Context, r model.Room) (model.Room, error) {
	return scanRoom(q.db.QueryRow(ctx, `
		INSERT INTO rooms (number, guest_name) VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET guest_name = EXCLUDED.guest_name
		RETURNING `+roomColumns,
		r.Number, pgText(r.GuestName)))
}
