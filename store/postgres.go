package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/foldline/market-ledger/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// The schema (users, markets, transactions) is assumed to exist.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// querier abstracts the pgx surface shared by the pool and a transaction,
// so the same row helpers serve both paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, balance)
		 VALUES ($1, $2, $3::NUMERIC)`,
		u.ID, u.Username, u.Balance.String(),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("username %s: %w", u.Username, model.ErrUsernameTaken)
	}
	return err
}

func getUser(ctx context.Context, q querier, id string, forUpdate bool) (*model.User, error) {
	sql := `SELECT id, username, balance::TEXT FROM users WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var u model.User
	var balance string
	err := q.QueryRow(ctx, sql, id).Scan(&u.ID, &u.Username, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Balance, _ = decimal.NewFromString(balance)
	return &u, nil
}

func saveUser(ctx context.Context, q querier, u *model.User) error {
	ct, err := q.Exec(ctx,
		`UPDATE users SET username = $2, balance = $3::NUMERIC WHERE id = $1`,
		u.ID, u.Username, u.Balance.String(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.pool, id, false)
}

func (s *PostgresStore) SaveUser(ctx context.Context, u *model.User) error {
	return saveUser(ctx, s.pool, u)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// --- Markets ---

const marketColumns = `id, title, description,
       liquidity::TEXT, yes_shares::TEXT, no_shares::TEXT, price::TEXT,
       resolution, created_at`

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var liquidity, yesShares, noShares, price string

	err := row.Scan(&m.ID, &m.Title, &m.Description,
		&liquidity, &yesShares, &noShares, &price,
		&m.Resolution, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.Liquidity, _ = decimal.NewFromString(liquidity)
	m.YesShares, _ = decimal.NewFromString(yesShares)
	m.NoShares, _ = decimal.NewFromString(noShares)
	m.Price, _ = decimal.NewFromString(price)
	return &m, nil
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, title, description, liquidity, yes_shares, no_shares, price, resolution, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		m.ID, m.Title, m.Description,
		m.Liquidity.String(), m.YesShares.String(), m.NoShares.String(), m.Price.String(),
		m.Resolution, m.CreatedAt,
	)
	return err
}

func getMarket(ctx context.Context, q querier, id string, forUpdate bool) (*model.Market, error) {
	sql := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	m, err := scanMarket(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func saveMarket(ctx context.Context, q querier, m *model.Market) error {
	ct, err := q.Exec(ctx,
		`UPDATE markets
		 SET title = $2, description = $3,
		     yes_shares = $4::NUMERIC, no_shares = $5::NUMERIC,
		     price = $6::NUMERIC, resolution = $7
		 WHERE id = $1`,
		m.ID, m.Title, m.Description,
		m.YesShares.String(), m.NoShares.String(),
		m.Price.String(), m.Resolution,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("market %s: %w", m.ID, model.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	return getMarket(ctx, s.pool, id, false)
}

func (s *PostgresStore) SaveMarket(ctx context.Context, m *model.Market) error {
	return saveMarket(ctx, s.pool, m)
}

func (s *PostgresStore) DeleteMarket(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM markets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("market %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

// --- Transactions ---

func createTransaction(ctx context.Context, q querier, t *model.Transaction) error {
	_, err := q.Exec(ctx,
		`INSERT INTO transactions (id, user_id, market_id, up_or_down, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		t.ID, t.UserID, t.MarketID, t.Side.Bool(), t.Amount.String(), t.CreatedAt,
	)
	return err
}

func listTransactions(ctx context.Context, q querier, column, value string) ([]model.Transaction, error) {
	rows, err := q.Query(ctx,
		`SELECT id, user_id, market_id, up_or_down, amount::TEXT, created_at
		 FROM transactions WHERE `+column+` = $1 ORDER BY created_at`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var upOrDown bool
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &t.MarketID, &upOrDown, &amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Side = model.SideFromBool(upOrDown)
		t.Amount, _ = decimal.NewFromString(amount)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error) {
	return listTransactions(ctx, s.pool, "market_id", marketID)
}

func (s *PostgresStore) ListTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return listTransactions(ctx, s.pool, "user_id", userID)
}

// --- Transaction boundary ---

// WithTx runs fn inside a single database transaction. Row locks taken
// by the Tx's ForUpdate reads are held until commit or rollback.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) // no-op after a successful commit

	if err := fn(&postgresTx{tx: dbTx}); err != nil {
		return err
	}
	return dbTx.Commit(ctx)
}

// postgresTx implements Tx on top of a pgx transaction.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, t.tx, id, true)
}

func (t *postgresTx) SaveUser(ctx context.Context, u *model.User) error {
	return saveUser(ctx, t.tx, u)
}

func (t *postgresTx) GetMarketForUpdate(ctx context.Context, id string) (*model.Market, error) {
	return getMarket(ctx, t.tx, id, true)
}

func (t *postgresTx) SaveMarket(ctx context.Context, m *model.Market) error {
	return saveMarket(ctx, t.tx, m)
}

func (t *postgresTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	return createTransaction(ctx, t.tx, tr)
}

func (t *postgresTx) ListTransactionsByMarket(ctx context.Context, marketID string) ([]model.Transaction, error) {
	return listTransactions(ctx, t.tx, "market_id", marketID)
}
